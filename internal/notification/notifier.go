package notification

import (
	"context"
	"fmt"
)

// Kind selects the message template sent to a customer.
type Kind string

const (
	KindLoadCompleted   Kind = "load-completed"
	KindDisposalWarning Kind = "disposal-warning"
)

// Payload carries template values such as the customer name or transaction id.
type Payload map[string]string

// Notifier is the outbound port used by the job engine and the disposal sweep.
type Notifier interface {
	Notify(ctx context.Context, contact string, kind Kind, payload Payload) error
}

// Render produces the customer-facing text for a notification.
func Render(kind Kind, p Payload) string {
	store := p["storeName"]
	if store == "" {
		store = "the shop"
	}
	switch kind {
	case KindLoadCompleted:
		return fmt.Sprintf("Hi %s, your laundry (order %s) is ready for pickup at %s.",
			p["customerName"], p["transactionId"], store)
	case KindDisposalWarning:
		return fmt.Sprintf("Hi %s, your laundry (order %s) has been waiting since %s. Please collect it by %s or it may be disposed of. - %s",
			p["customerName"], p["transactionId"], p["completedAt"], p["expiresAt"], store)
	}
	return fmt.Sprintf("Update on your laundry order %s.", p["transactionId"])
}
