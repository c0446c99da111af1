package notification

import (
	"context"
	"net/http"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"turnero-desk/internal/model"
	"turnero-desk/internal/store"
)

type countingNotifier struct {
	mu    sync.Mutex
	turns []int64
	wg    *sync.WaitGroup
}

func (c *countingNotifier) NotifyNewTurn(_ context.Context, turn model.Turn) error {
	c.mu.Lock()
	c.turns = append(c.turns, turn.ID)
	c.mu.Unlock()
	c.wg.Done()
	return nil
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, &countingNotifier{})

	wp.Dispatch(model.Turn{ID: 123})

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, int64(123), job.ID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchNeverBlocks(t *testing.T) {
	wp := NewWorkerPool(1, &countingNotifier{})
	for i := 0; i < cap(wp.Jobs())+5; i++ {
		wp.Dispatch(model.Turn{ID: int64(i)})
	}
	assert.Len(t, wp.Jobs(), cap(wp.Jobs()))
}

func TestWorkerPool_RunsEveryTurn(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(3)
	notifier := &countingNotifier{wg: &wg}
	wp := NewWorkerPool(2, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	for _, id := range []int64{1, 2, 3} {
		wp.Dispatch(model.Turn{ID: id})
	}
	wg.Wait()
	cancel()
	wp.Wait()

	assert.ElementsMatch(t, []int64{1, 2, 3}, notifier.turns)
}

// A chime queued behind a busy worker has not started yet, so muting
// before the worker reaches it silences it completely.
func TestWorkerPool_MuteBeforeQueuedChimeStarts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	speaker := &blockingSpeaker{release: make(chan struct{}), started: make(chan struct{})}
	sound := NewSound(speaker, clock, true)
	wp := NewWorkerPool(1, NewNotifier(sound, nil, nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		wp.Wait()
	}()
	wp.Start(ctx)

	wp.Dispatch(model.Turn{ID: 1})
	<-speaker.started
	wp.Dispatch(model.Turn{ID: 2})

	sound.SetEnabled(false)
	close(speaker.release)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	clock.Advance(DefaultChime.Gap)

	require.Eventually(t, func() bool { return len(wp.Jobs()) == 0 }, time.Second, time.Millisecond)
	// Turn 1 finished its chime; turn 2 played nothing.
	require.Eventually(t, func() bool { return speaker.plays.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), speaker.plays.Load())
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// The worker runs the whole cycle down to the database: subscriptions for
// the turn's floor are loaded and an expired one is removed.
func TestWorkerPool_PushesToFloorSubscribers(t *testing.T) {
	gormDB, mock := newTestDB(t)
	clock := clockwork.NewFakeClock()

	var wg sync.WaitGroup
	wg.Add(2)
	sent := make(chan string, 2)
	delivery := NewPushDelivery(store.NewGormStore(gormDB), webpush.Options{}).WithSender(&mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			sent <- sub.Endpoint
			assert.Equal(t, "turno-77", options.Topic)
			if sub.Endpoint == "https://example.com/expired" {
				return response(http.StatusGone), nil
			}
			return response(http.StatusCreated), nil
		},
	})
	system := NewSystemNotifier(clock, delivery, nil, PermissionGranted, 0)
	wp := NewWorkerPool(1, NewNotifier(nil, nil, system, nil))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "push_subscriptions" WHERE piso = $1`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "piso", "created_at"}).
			AddRow("https://example.com/live", "k", "a", 3, time.Now()).
			AddRow("https://example.com/expired", "k", "a", 3, time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "push_subscriptions" WHERE endpoint = $1`)).
		WithArgs("https://example.com/expired").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)
	wp.Dispatch(model.Turn{ID: 77, Nombre: "Ana", Piso: 3, Area: "SECRETARIA"})

	wg.Wait()
	require.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	cancel()
	wp.Wait()

	close(sent)
	var endpoints []string
	for e := range sent {
		endpoints = append(endpoints, e)
	}
	assert.ElementsMatch(t, []string{"https://example.com/live", "https://example.com/expired"}, endpoints)
	require.Len(t, system.Active(), 1)
}
