package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chocolata/internal/domain"

	"github.com/google/uuid"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body
const SignatureHeader = "X-Payment-Signature"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// Event is the part of a provider notification the shop acts on
type Event struct {
	Type          string
	TransactionID string
	OrderID       uuid.UUID
	HasOrder      bool
}

type rawEvent struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	EventType string            `json:"event_type"`
	Metadata  map[string]string `json:"metadata"`
	Data      struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent reads both Stripe-style (type, data.object) and PayPal-style (event_type, metadata) payloads
func ParseEvent(body []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	event := Event{Type: raw.Type}
	if event.Type == "" {
		event.Type = raw.EventType
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}

	event.TransactionID = raw.Data.Object.ID
	if event.TransactionID == "" {
		event.TransactionID = raw.ID
	}

	orderID := raw.Data.Object.Metadata["order_id"]
	if orderID == "" {
		orderID = raw.Metadata["order_id"]
	}
	if orderID != "" {
		id, err := uuid.Parse(orderID)
		if err != nil {
			return Event{}, fmt.Errorf("%w: bad order_id", ErrMalformedEvent)
		}
		event.OrderID = id
		event.HasOrder = true
	}

	return event, nil
}

// Outcome maps an event type onto the payment status it reports. ok is false for events the shop ignores.
func Outcome(eventType string) (status domain.PaymentStatus, ok bool) {
	switch eventType {
	case "payment_intent.succeeded", "checkout.session.completed", "charge.succeeded":
		return domain.PaymentStatusCompleted, true
	case "payment_intent.payment_failed", "charge.failed":
		return domain.PaymentStatusFailed, true
	case "charge.refunded":
		return domain.PaymentStatusRefunded, true
	}
	return "", false
}

// Sign returns the signature a provider would send for body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against body. An empty secret disables verification.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return nil
	}
	expected := Sign(secret, body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return ErrInvalidSignature
	}
	return nil
}
