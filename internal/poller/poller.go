// Package poller keeps a desk's view of the queue fresh.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"turnero-desk/internal/detect"
	"turnero-desk/internal/events"
	"turnero-desk/internal/model"
	"turnero-desk/internal/remote"
)

// DefaultInterval is the refresh cadence while a view is active.
const DefaultInterval = 15 * time.Second

// Source lists turns from the remote store.
type Source interface {
	ListTurns(ctx context.Context, creds remote.Credentials, filter model.Filter) ([]model.Turn, error)
}

// Publisher receives every applied snapshot.
type Publisher interface {
	Publish(events.Event)
}

// Poller fetches the turns of one scope on a fixed cadence. Polls run
// concurrently, but only the Run goroutine writes the cached list, and a
// response is dropped when a later-issued poll has already been applied.
type Poller struct {
	source    Source
	creds     remote.CredentialSource
	filter    model.Filter
	interval  time.Duration
	clock     clockwork.Clock
	dispatch  func(model.Turn)
	publisher Publisher

	refreshCh chan struct{}
	scopeCh   chan scope
	discarded atomic.Uint64

	mu      sync.RWMutex
	turns   []model.Turn
	applied uint64

	// Owned by the Run goroutine.
	issued   uint64
	stale    uint64
	detector detect.Detector
}

type scope struct {
	filter   model.Filter
	dispatch func(model.Turn)
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the real clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithInterval sets the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithDispatcher sets the func that receives each newly detected turn.
func WithDispatcher(fn func(model.Turn)) Option {
	return func(p *Poller) { p.dispatch = fn }
}

// WithPublisher sets where applied snapshots are published.
func WithPublisher(pub Publisher) Option {
	return func(p *Poller) { p.publisher = pub }
}

// New creates a poller for filter.
func New(source Source, creds remote.CredentialSource, filter model.Filter, opts ...Option) *Poller {
	p := &Poller{
		source:    source,
		creds:     creds,
		filter:    filter,
		interval:  DefaultInterval,
		clock:     clockwork.NewRealClock(),
		refreshCh: make(chan struct{}, 1),
		scopeCh:   make(chan scope, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type result struct {
	seq   uint64
	turns []model.Turn
	err   error
}

// Run polls once immediately and then every interval until ctx is
// cancelled. It returns after every in-flight poll has finished.
func (p *Poller) Run(ctx context.Context) {
	select {
	case s := <-p.scopeCh:
		p.rescope(s)
	default:
	}
	log.Info().Dur("interval", p.interval).Str("estado", string(p.filter.Estado)).Interface("piso", p.filter.Piso).Msg("starting turn poller")

	results := make(chan result)
	var wg sync.WaitGroup
	defer wg.Wait()

	issue := func() {
		p.issued++
		seq := p.issued
		filter := p.filter
		wg.Add(1)
		go func() {
			defer wg.Done()
			turns, err := p.source.ListTurns(ctx, p.creds.Credentials(), filter)
			select {
			case results <- result{seq: seq, turns: turns, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	issue()

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("turn poller shutting down")
			return
		case <-ticker.Chan():
			issue()
		case <-p.refreshCh:
			issue()
		case s := <-p.scopeCh:
			p.rescope(s)
			issue()
		case r := <-results:
			p.apply(ctx, r)
		}
	}
}

// Refresh asks for an out-of-cycle poll. Requests made while one is
// already pending are coalesced.
func (p *Poller) Refresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

// SetScope switches the poller to filter and dispatch, the func that
// receives newly detected turns (nil for none). The cached list and the
// new-turn baseline are dropped, and responses to polls issued under the
// old scope are discarded. Only the latest pending scope is applied.
func (p *Poller) SetScope(filter model.Filter, dispatch func(model.Turn)) {
	s := scope{filter: filter, dispatch: dispatch}
	for {
		select {
		case p.scopeCh <- s:
			return
		default:
		}
		select {
		case <-p.scopeCh:
		default:
		}
	}
}

// rescope is only called from the Run goroutine.
func (p *Poller) rescope(s scope) {
	p.mu.Lock()
	p.filter = s.filter
	p.turns = nil
	p.applied = 0
	p.mu.Unlock()

	p.dispatch = s.dispatch
	p.stale = p.issued
	p.detector = detect.Detector{}
	log.Info().Str("estado", string(s.filter.Estado)).Interface("piso", s.filter.Piso).Bool("alerts", s.dispatch != nil).Msg("turn poller rescoped")

	if p.publisher != nil {
		p.publisher.Publish(events.Event{
			Stream: events.StreamReceived,
			Type:   events.TypeTurns,
			Data:   []model.Turn{},
		})
	}
}

// apply is only called from the Run goroutine.
func (p *Poller) apply(ctx context.Context, r result) {
	if ctx.Err() != nil {
		return
	}
	if r.err != nil {
		log.Warn().Err(r.err).Uint64("seq", r.seq).Msg("poll failed; keeping previous list")
		return
	}

	p.mu.Lock()
	if r.seq <= p.applied || r.seq <= p.stale {
		p.mu.Unlock()
		p.discarded.Add(1)
		log.Debug().Uint64("seq", r.seq).Uint64("applied", p.applied).Msg("discarding stale poll response")
		return
	}
	prev := p.turns
	p.turns = r.turns
	p.applied = r.seq
	p.mu.Unlock()

	n := p.detector.Update(detect.Waiting(r.turns))
	log.Debug().Uint64("seq", r.seq).Int("turns", len(r.turns)).Int("new", n).Msg("poll applied")

	if p.publisher != nil {
		p.publisher.Publish(events.Event{
			Stream: events.StreamReceived,
			Type:   events.TypeTurns,
			Data:   copyTurns(r.turns),
		})
	}

	if n == 0 || p.dispatch == nil {
		return
	}
	for _, t := range detect.Newcomers(prev, detect.WaitingOnly(r.turns), n) {
		log.Info().Int64("turn_id", t.ID).Str("nombre", t.Nombre).Int("piso", t.Piso).Msg("new turn detected")
		p.dispatch(t)
	}
}

// Snapshot returns a copy of the cached list and the sequence number of
// the poll that produced it. Sequence 0 means nothing has loaded yet.
func (p *Poller) Snapshot() ([]model.Turn, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyTurns(p.turns), p.applied
}

// Lookup returns the last known estado of a cached turn.
func (p *Poller) Lookup(id int64) (model.Estado, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.turns {
		if t.ID == id {
			return t.Estado, true
		}
	}
	return "", false
}

// Discarded counts responses dropped because a newer one was applied.
func (p *Poller) Discarded() uint64 {
	return p.discarded.Load()
}

// Filter returns the scope this poller watches.
func (p *Poller) Filter() model.Filter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter
}

func copyTurns(turns []model.Turn) []model.Turn {
	out := make([]model.Turn, len(turns))
	copy(out, turns)
	return out
}
