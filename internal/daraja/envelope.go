package daraja

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"
)

// transactionType is fixed: the site only collects pay-bill support payments.
const transactionType = "CustomerPayBillOnline"

// Daraja expects timestamps in East Africa Time regardless of where the
// function runs.
var eat = time.FixedZone("EAT", 3*60*60)

// Timestamp renders t as the gateway's fixed-width YYYYMMDDHHMMSS form.
func Timestamp(t time.Time) string {
	return t.In(eat).Format("20060102150405")
}

// Password derives the per-request password from the merchant short code, the
// shared passkey, and a timestamp previously produced by Timestamp. The same
// timestamp string must be sent in the envelope; deriving the two from
// different instants makes the gateway reject the request.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// PushRequest is the caller-supplied portion of a push.
type PushRequest struct {
	// PhoneNumber must already be normalized to 254XXXXXXXXX.
	PhoneNumber string
	// Amount is in whole currency units; fractional parts are floored.
	Amount           float64
	AccountReference string
	TransactionDesc  string
}

func (c *Client) buildEnvelope(req PushRequest, now time.Time) (PushEnvelope, error) {
	amount := int64(math.Floor(req.Amount))
	if amount <= 0 {
		return PushEnvelope{}, fmt.Errorf("amount must be at least 1, got %v", req.Amount)
	}

	ts := Timestamp(now)

	return PushEnvelope{
		BusinessShortCode: c.shortCode,
		Password:          Password(c.shortCode, c.passkey, ts),
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            amount,
		PartyA:            req.PhoneNumber,
		PartyB:            c.shortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       c.callbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.TransactionDesc,
	}, nil
}
