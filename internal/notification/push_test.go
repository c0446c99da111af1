package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnero-desk/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

type fakeSubscriptions struct {
	mu      sync.Mutex
	subs    map[int][]model.PushSubscription
	deleted []string
	err     error
}

func (f *fakeSubscriptions) SubscriptionsForFloor(_ context.Context, piso int) ([]model.PushSubscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subs[piso], nil
}

func (f *fakeSubscriptions) DeleteSubscription(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func testNotification() SystemNotification {
	return SystemNotification{
		Tag:    "turno-12",
		TurnID: 12,
		Piso:   1,
		Title:  "Nuevo turno registrado",
		Body:   "Ana - Rentas",
		Data:   map[string]string{"type": "new_turn", "turn_id": "12"},
	}
}

func TestPushDelivery_SendsToFloorSubscriptions(t *testing.T) {
	store := &fakeSubscriptions{subs: map[int][]model.PushSubscription{
		1: {{Endpoint: "https://push.example/a", P256DH: "k1", Auth: "a1", Piso: 1}},
		2: {{Endpoint: "https://push.example/b", P256DH: "k2", Auth: "a2", Piso: 2}},
	}}

	var sent []string
	p := NewPushDelivery(store, webpush.Options{Subscriber: "mailto:ops@example.com", TTL: 60}).WithSender(&mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			sent = append(sent, sub.Endpoint)
			assert.Equal(t, "k1", sub.Keys.P256dh)
			assert.Equal(t, "turno-12", options.Topic)
			assert.Equal(t, 60, options.TTL)

			var body pushPayload
			require.NoError(t, json.Unmarshal(payload, &body))
			assert.Equal(t, "Ana - Rentas", body.Body)
			assert.Equal(t, "new_turn", body.Data["type"])
			return response(http.StatusCreated), nil
		},
	})

	require.NoError(t, p.Deliver(context.Background(), testNotification()))
	assert.Equal(t, []string{"https://push.example/a"}, sent)
	assert.Empty(t, store.deleted)
}

func TestPushDelivery_DeletesExpiredSubscription(t *testing.T) {
	store := &fakeSubscriptions{subs: map[int][]model.PushSubscription{
		1: {{Endpoint: "https://push.example/expired", Piso: 1}},
	}}
	p := NewPushDelivery(store, webpush.Options{}).WithSender(&mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			return response(http.StatusGone), nil
		},
	})

	require.NoError(t, p.Deliver(context.Background(), testNotification()))
	assert.Equal(t, []string{"https://push.example/expired"}, store.deleted)
}

func TestPushDelivery_JoinsErrors(t *testing.T) {
	store := &fakeSubscriptions{subs: map[int][]model.PushSubscription{
		1: {{Endpoint: "https://push.example/a"}, {Endpoint: "https://push.example/b"}},
	}}
	p := NewPushDelivery(store, webpush.Options{}).WithSender(&mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			if sub.Endpoint == "https://push.example/a" {
				return nil, errors.New("dial tcp: timeout")
			}
			return response(http.StatusInternalServerError), nil
		},
	})

	err := p.Deliver(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push.example/a")
	assert.Contains(t, err.Error(), "answered 500")
}

func TestPushDelivery_StoreError(t *testing.T) {
	p := NewPushDelivery(&fakeSubscriptions{err: errors.New("db closed")}, webpush.Options{})
	err := p.Deliver(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floor 1")
}
