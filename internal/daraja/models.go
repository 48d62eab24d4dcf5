package daraja

// authResponse captures the payload returned by the Daraja OAuth endpoint.
// ExpiresIn arrives as a string ("3599") despite being a number.
type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// PushEnvelope is the signed STK push request body. Every field derives from
// configuration plus the caller's request; the Password/Timestamp pair is
// always computed from a single instant.
type PushEnvelope struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// PushResponse is the gateway's synchronous acknowledgement. ResponseCode "0"
// means the push was accepted for delivery to the handset; payment completion
// is only ever reported through the callback.
type PushResponse struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	ResponseDesc      string `json:"ResponseDescription"`
	CustomerMessage   string `json:"CustomerMessage"`
}

// CallbackEnvelope mirrors the gateway's asynchronous result notification,
// nested exactly as Safaricom delivers it.
type CallbackEnvelope struct {
	Body struct {
		StkCallback *StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// StkCallback is the result of a previously initiated push. ResultCode zero
// is success; anything else is a cancellation or failure.
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata holds the name/value items present on successful payments.
type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem is one name/value pair. Values are numbers for Amount and
// PhoneNumber but strings for the receipt, hence the any type.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// Lookup finds an item by name. Items arrive in no guaranteed order and the
// set varies between transaction types, so position must never be relied on.
func (m *CallbackMetadata) Lookup(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, item := range m.Item {
		if item.Name == name {
			return item.Value, true
		}
	}
	return nil, false
}
