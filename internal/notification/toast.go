package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"turnero-desk/internal/events"
	"turnero-desk/internal/model"
)

// Phase is where a toast is in its on-screen life.
type Phase string

const (
	PhaseEntering Phase = "entering"
	PhaseShown    Phase = "shown"
	PhaseLeaving  Phase = "leaving"
	PhaseRemoved  Phase = "removed"
)

// Toast timings.
const (
	ToastEnter   = 10 * time.Millisecond
	ToastVisible = 4 * time.Second
	ToastExit    = 300 * time.Millisecond
)

// Toast is one transient on-screen message.
type Toast struct {
	ID        string    `json:"id"`
	TurnID    int64     `json:"turn_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Phase     Phase     `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
}

// Board stacks toasts. Each toast has its own timers; showing a new one
// never touches the others.
type Board struct {
	clock     clockwork.Clock
	publisher Publisher
	visible   time.Duration

	mu     sync.Mutex
	toasts []*Toast
}

// NewBoard creates a toast board. visible <= 0 uses ToastVisible.
func NewBoard(clock clockwork.Clock, publisher Publisher, visible time.Duration) *Board {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if visible <= 0 {
		visible = ToastVisible
	}
	return &Board{clock: clock, publisher: publisher, visible: visible}
}

// Alert shows a toast for turn.
func (b *Board) Alert(_ context.Context, turn model.Turn) error {
	b.Show(turn)
	return nil
}

// Show adds a toast for turn and schedules its transitions.
func (b *Board) Show(turn model.Turn) Toast {
	t := &Toast{
		ID:        uuid.NewString(),
		TurnID:    turn.ID,
		Title:     "Nuevo Turno",
		Body:      turn.Nombre + "\n" + turn.DisplayArea(),
		Phase:     PhaseEntering,
		CreatedAt: b.clock.Now().UTC(),
	}

	b.mu.Lock()
	b.toasts = append(b.toasts, t)
	snapshot := *t
	b.mu.Unlock()
	b.publish(snapshot)

	b.clock.AfterFunc(ToastEnter, func() { b.advance(t.ID, PhaseShown) })
	b.clock.AfterFunc(b.visible, func() { b.advance(t.ID, PhaseLeaving) })
	b.clock.AfterFunc(b.visible+ToastExit, func() { b.advance(t.ID, PhaseRemoved) })
	return snapshot
}

// advance moves a toast forward; phases never go back.
func (b *Board) advance(id string, to Phase) {
	b.mu.Lock()
	idx := -1
	for i, t := range b.toasts {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || phaseRank(b.toasts[idx].Phase) >= phaseRank(to) {
		b.mu.Unlock()
		return
	}
	b.toasts[idx].Phase = to
	snapshot := *b.toasts[idx]
	if to == PhaseRemoved {
		b.toasts = append(b.toasts[:idx], b.toasts[idx+1:]...)
	}
	b.mu.Unlock()
	b.publish(snapshot)
}

func (b *Board) publish(t Toast) {
	if b.publisher == nil {
		return
	}
	b.publisher.Publish(events.Event{
		Stream: events.StreamReceived,
		Type:   events.TypeToast,
		TurnID: t.TurnID,
		Data:   t,
	})
}

// Active returns the toasts still on screen, oldest first.
func (b *Board) Active() []Toast {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Toast, 0, len(b.toasts))
	for _, t := range b.toasts {
		out = append(out, *t)
	}
	return out
}

func phaseRank(p Phase) int {
	switch p {
	case PhaseEntering:
		return 0
	case PhaseShown:
		return 1
	case PhaseLeaving:
		return 2
	case PhaseRemoved:
		return 3
	}
	return -1
}
