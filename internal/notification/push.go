package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"

	"turnero-desk/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the part of the store push delivery needs.
type SubscriptionStore interface {
	SubscriptionsForFloor(ctx context.Context, piso int) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// PushDelivery sends system notifications as Web Push messages to every
// browser subscribed to the turn's floor.
type PushDelivery struct {
	store   SubscriptionStore
	options webpush.Options
	sender  NotificationSender
}

// NewPushDelivery creates a PushDelivery using the real webpush sender.
func NewPushDelivery(store SubscriptionStore, options webpush.Options) *PushDelivery {
	return &PushDelivery{store: store, options: options, sender: &WebPushSender{}}
}

// WithSender replaces the sender, mostly for tests.
func (p *PushDelivery) WithSender(s NotificationSender) *PushDelivery {
	p.sender = s
	return p
}

type pushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Tag   string            `json:"tag"`
	Data  map[string]string `json:"data"`
}

// Deliver implements Delivery.
func (p *PushDelivery) Deliver(ctx context.Context, n SystemNotification) error {
	subs, err := p.store.SubscriptionsForFloor(ctx, n.Piso)
	if err != nil {
		return fmt.Errorf("fetch subscriptions for floor %d: %w", n.Piso, err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{Title: n.Title, Body: n.Body, Tag: n.Tag, Data: n.Data})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	// A push service replaces a pending message with the same topic.
	opts := p.options
	opts.Topic = n.Tag
	opts.Urgency = webpush.UrgencyHigh

	log.Debug().Str("tag", n.Tag).Int("subscriptions", len(subs)).Msg("sending push notifications")

	var errs []error
	for _, sub := range subs {
		if err := p.send(ctx, sub, payload, &opts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// send sends a single web push notification.
func (p *PushDelivery) send(ctx context.Context, sub model.PushSubscription, payload []byte, opts *webpush.Options) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, opts)
	if err != nil {
		return fmt.Errorf("send to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		log.Info().Str("endpoint", sub.Endpoint).Int("status", resp.StatusCode).Msg("push subscription expired; deleting")
		if err := p.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			return fmt.Errorf("delete expired subscription %s: %w", sub.Endpoint, err)
		}
	case resp.StatusCode >= 300:
		return fmt.Errorf("push service answered %d for %s", resp.StatusCode, sub.Endpoint)
	}
	return nil
}
