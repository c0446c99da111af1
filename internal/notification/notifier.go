// Package notification raises the alerts for newly arrived visitors.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"turnero-desk/internal/events"
	"turnero-desk/internal/model"
)

// Publisher receives presentation events.
type Publisher interface {
	Publish(events.Event)
}

// Alerter is one independent alert channel.
type Alerter interface {
	Alert(ctx context.Context, turn model.Turn) error
}

type namedAlerter struct {
	name string
	Alerter
}

// Notifier fans a new turn out to the sound, toast and system alerters.
// They run concurrently; a failing or slow one does not hold up the rest.
type Notifier struct {
	alerters  []namedAlerter
	publisher Publisher
}

// NewNotifier builds a Notifier. Any alerter may be nil.
func NewNotifier(sound *Sound, toasts *Board, system *SystemNotifier, publisher Publisher) *Notifier {
	n := &Notifier{publisher: publisher}
	if sound != nil {
		n.alerters = append(n.alerters, namedAlerter{"sound", sound})
	}
	if toasts != nil {
		n.alerters = append(n.alerters, namedAlerter{"toast", toasts})
	}
	if system != nil {
		n.alerters = append(n.alerters, namedAlerter{"system", system})
	}
	return n
}

// NotifyNewTurn runs one alert cycle for turn. Failures are logged and
// joined into the returned error; a denied system permission is not a
// failure.
func (n *Notifier) NotifyNewTurn(ctx context.Context, turn model.Turn) error {
	if n.publisher != nil {
		t := turn
		n.publisher.Publish(events.Event{
			Stream: events.StreamReceived,
			Type:   events.TypeNewTurn,
			TurnID: turn.ID,
			Turn:   &t,
		})
	}

	errs := make([]error, len(n.alerters))
	var wg sync.WaitGroup
	for i, a := range n.alerters {
		wg.Add(1)
		go func(i int, a namedAlerter) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("%s alert panicked: %v", a.name, r)
				}
			}()
			if err := a.Alert(ctx, turn); err != nil {
				if errors.Is(err, ErrPermissionDenied) {
					log.Debug().Int64("turn_id", turn.ID).Msg("system notifications not permitted")
					return
				}
				errs[i] = fmt.Errorf("%s alert: %w", a.name, err)
			}
		}(i, a)
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		log.Warn().Err(err).Int64("turn_id", turn.ID).Msg("some alerts failed")
	}
	return err
}
