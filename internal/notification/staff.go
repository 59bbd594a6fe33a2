package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"laundry-jobs-backend/internal/model"
)

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of PushSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the slice of the store the broadcaster needs.
type SubscriptionStore interface {
	ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// StaffBroadcaster pushes job events to every subscribed staff browser.
type StaffBroadcaster struct {
	subs    SubscriptionStore
	options *webpush.Options
	sender  PushSender
}

// NewStaffBroadcaster creates a broadcaster that uses the real webpush sender.
func NewStaffBroadcaster(subs SubscriptionStore, options *webpush.Options) *StaffBroadcaster {
	return &StaffBroadcaster{subs: subs, options: options, sender: &WebPushSender{}}
}

type pushMessage struct {
	Title         string `json:"title"`
	Body          string `json:"body"`
	Kind          Kind   `json:"kind"`
	TransactionID string `json:"transactionId"`
}

// Broadcast sends one push per staff subscription. Individual failures are logged.
func (b *StaffBroadcaster) Broadcast(ctx context.Context, kind Kind, payload Payload) error {
	subscriptions, err := b.subs.ListPushSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch staff subscriptions: %w", err)
	}
	if len(subscriptions) == 0 {
		return nil
	}

	msg, err := json.Marshal(pushMessage{
		Title:         fmt.Sprintf("Order %s ready", payload["transactionId"]),
		Body:          fmt.Sprintf("All loads for %s are done.", payload["customerName"]),
		Kind:          kind,
		TransactionID: payload["transactionId"],
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	log.Printf("Sending %d staff notifications for order %s", len(subscriptions), payload["transactionId"])
	for _, sub := range subscriptions {
		b.sendOne(ctx, sub, msg)
	}
	return nil
}

func (b *StaffBroadcaster) sendOne(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := b.sender.Send(payload, wpSub, b.options)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := b.subs.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
