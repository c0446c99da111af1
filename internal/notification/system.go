package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"turnero-desk/internal/events"
	"turnero-desk/internal/model"
)

// Permission mirrors the browser's notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission accepts the three browser values; anything else is
// treated as not yet asked.
func ParsePermission(raw string) Permission {
	switch Permission(raw) {
	case PermissionGranted, PermissionDenied:
		return Permission(raw)
	}
	return PermissionDefault
}

// ErrPermissionDenied is returned when system notifications are not
// allowed. Callers treat it as "feature unavailable".
var ErrPermissionDenied = errors.New("notification permission not granted")

// SystemTTL is how long a system notification stays up.
const SystemTTL = 5 * time.Second

// SystemNotification is a platform-level notification for one turn.
type SystemNotification struct {
	Tag     string            `json:"tag"`
	TurnID  int64             `json:"turn_id"`
	Piso    int               `json:"piso"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data"`
	ShownAt time.Time         `json:"shown_at"`
}

// Delivery hands a notification to the platform.
type Delivery interface {
	Deliver(ctx context.Context, n SystemNotification) error
}

type liveNotification struct {
	n     SystemNotification
	gen   uint64
	timer clockwork.Timer
}

// SystemNotifier shows at most one notification per tag. Notifying a tag
// that is still up replaces it and restarts its dismiss timer.
type SystemNotifier struct {
	clock     clockwork.Clock
	ttl       time.Duration
	delivery  Delivery
	publisher Publisher

	mu         sync.Mutex
	permission Permission
	live       map[string]*liveNotification
	gen        uint64
}

// NewSystemNotifier creates a SystemNotifier. delivery may be nil when no
// platform channel is configured.
func NewSystemNotifier(clock clockwork.Clock, delivery Delivery, publisher Publisher, permission Permission, ttl time.Duration) *SystemNotifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = SystemTTL
	}
	return &SystemNotifier{
		clock:      clock,
		ttl:        ttl,
		delivery:   delivery,
		publisher:  publisher,
		permission: permission,
		live:       make(map[string]*liveNotification),
	}
}

// TagFor is the notification tag of a turn.
func TagFor(turnID int64) string {
	return "turno-" + strconv.FormatInt(turnID, 10)
}

// Permission returns the current permission.
func (s *SystemNotifier) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// SetPermission records the user's answer to the permission prompt.
func (s *SystemNotifier) SetPermission(p Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permission = p
}

// Alert shows the notification for turn.
func (s *SystemNotifier) Alert(ctx context.Context, turn model.Turn) error {
	return s.Notify(ctx, turn)
}

// Notify shows or replaces the notification tagged for turn.
func (s *SystemNotifier) Notify(ctx context.Context, turn model.Turn) error {
	n := SystemNotification{
		Tag:    TagFor(turn.ID),
		TurnID: turn.ID,
		Piso:   turn.Piso,
		Title:  "Nuevo turno registrado",
		Body:   fmt.Sprintf("%s - %s", turn.Nombre, turn.DisplayArea()),
		Data: map[string]string{
			"type":    events.TypeNewTurn,
			"turn_id": strconv.FormatInt(turn.ID, 10),
			"piso":    strconv.Itoa(turn.Piso),
			"area":    turn.Area,
			"screen":  "Piso",
		},
		ShownAt: s.clock.Now().UTC(),
	}

	s.mu.Lock()
	if s.permission != PermissionGranted {
		s.mu.Unlock()
		return ErrPermissionDenied
	}
	s.gen++
	gen := s.gen
	if prev, ok := s.live[n.Tag]; ok && prev.timer != nil {
		prev.timer.Stop()
	}
	entry := &liveNotification{n: n, gen: gen}
	s.live[n.Tag] = entry
	s.mu.Unlock()

	timer := s.clock.AfterFunc(s.ttl, func() { s.expire(n.Tag, gen) })
	s.mu.Lock()
	if cur, ok := s.live[n.Tag]; ok && cur.gen == gen {
		cur.timer = timer
	}
	s.mu.Unlock()

	s.publish(events.TypeSystem, n)

	if s.delivery == nil {
		return nil
	}
	if err := s.delivery.Deliver(ctx, n); err != nil {
		return fmt.Errorf("deliver %s: %w", n.Tag, err)
	}
	return nil
}

// Dismiss closes the notification with tag, if it is up.
func (s *SystemNotifier) Dismiss(tag string) {
	s.mu.Lock()
	entry, ok := s.live[tag]
	if ok {
		delete(s.live, tag)
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	s.mu.Unlock()
	if ok {
		s.publish(events.TypeSystemDismiss, entry.n)
	}
}

func (s *SystemNotifier) expire(tag string, gen uint64) {
	s.mu.Lock()
	entry, ok := s.live[tag]
	if !ok || entry.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.live, tag)
	s.mu.Unlock()
	s.publish(events.TypeSystemDismiss, entry.n)
}

// Active returns the notifications currently up.
func (s *SystemNotifier) Active() []SystemNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SystemNotification, 0, len(s.live))
	for _, e := range s.live {
		out = append(out, e.n)
	}
	return out
}

func (s *SystemNotifier) publish(typ string, n SystemNotification) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.Event{
		Stream: events.StreamReceived,
		Type:   typ,
		TurnID: n.TurnID,
		Data:   n,
	})
}
