package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
	"github.com/alanyoungcy/oraclerelay/internal/metrics"
	"github.com/alanyoungcy/oraclerelay/internal/store/memory"
)

var t0 = time.Unix(1_700_000_000, 0)

func newTestLedger(store domain.HistoryStore) (*HistoryLedger, *clock.Mock) {
	clk := clock.NewMock()
	clk.Add(t0.Sub(clk.Now()))
	return NewHistoryLedger(store, DefaultLedgerConfig(), clk, discardLogger()), clk
}

func obsAt(price float64, at time.Time) observation {
	return observation{price: price, at: at}
}

// seedTwoRows leaves the store holding an older row and a recent row priced
// at 100 and stamped t0.
func seedTwoRows(t *testing.T, store domain.HistoryStore) {
	t.Helper()
	ctx := context.Background()
	_, err := store.InsertAndTrim(ctx, 90, t0.Add(-60*time.Second).Unix(), retainedRecords)
	require.NoError(t, err)
	_, err = store.InsertAndTrim(ctx, 100, t0.Unix(), retainedRecords)
	require.NoError(t, err)
}

func TestLedger_EmptyAlwaysInserts(t *testing.T) {
	l, _ := newTestLedger(memory.NewHistoryStore())

	assert.Equal(t, metrics.LedgerInserted, l.observe(context.Background(), obsAt(100, t0)))
}

func TestLedger_SingleRowDebounce(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
		price float64
		want  string
	}{
		{name: "younger than debounce, big move", delay: time.Second, price: 5000, want: metrics.LedgerDiscarded},
		{name: "exactly debounce", delay: 2 * time.Second, price: 100, want: metrics.LedgerDiscarded},
		{name: "exactly debounce plus a fraction", delay: 2500 * time.Millisecond, price: 100, want: metrics.LedgerInserted},
		{name: "under three seconds", delay: 2900 * time.Millisecond, price: 100, want: metrics.LedgerInserted},
		{name: "older than debounce, same price", delay: 3 * time.Second, price: 100, want: metrics.LedgerInserted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLedger(memory.NewHistoryStore())
			require.Equal(t, metrics.LedgerInserted, l.observe(context.Background(), obsAt(100, t0)))

			got := l.observe(context.Background(), obsAt(tt.price, t0.Add(tt.delay)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLedger_TwoRowDedup(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		at    time.Time
		want  string
	}{
		{name: "small move within interval", price: 99.5, at: t0.Add(time.Second), want: metrics.LedgerDiscarded},
		{name: "move of exactly one", price: 101, at: t0.Add(time.Second), want: metrics.LedgerDiscarded},
		{name: "move above threshold", price: 102, at: t0.Add(time.Second), want: metrics.LedgerInserted},
		{name: "move below threshold downward", price: 98.9, at: t0.Add(time.Second), want: metrics.LedgerInserted},
		{name: "interval elapsed", price: 100.2, at: t0.Add(301 * time.Second), want: metrics.LedgerInserted},
		{name: "exactly the interval", price: 100.2, at: t0.Add(300 * time.Second), want: metrics.LedgerDiscarded},
		{name: "interval plus a fraction", price: 100.2, at: t0.Add(300500 * time.Millisecond), want: metrics.LedgerInserted},
		{name: "interval plus most of a second", price: 100.2, at: t0.Add(300900 * time.Millisecond), want: metrics.LedgerInserted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewHistoryStore()
			seedTwoRows(t, store)
			l, _ := newTestLedger(store)

			assert.Equal(t, tt.want, l.observe(context.Background(), obsAt(tt.price, tt.at)))

			records, err := store.List(context.Background())
			require.NoError(t, err)
			require.Len(t, records, 2)
			if tt.want == metrics.LedgerInserted {
				assert.Equal(t, 100.0, records[0].Price, "previous recent row becomes the older one")
				assert.Equal(t, tt.price, records[1].Price)
			} else {
				assert.Equal(t, []float64{90, 100}, []float64{records[0].Price, records[1].Price})
			}
		})
	}
}

func TestLedger_NeverRetainsMoreThanTwoRows(t *testing.T) {
	store := memory.NewHistoryStore()
	l, _ := newTestLedger(store)
	ctx := context.Background()

	at := t0
	for i := 0; i < 50; i++ {
		at = at.Add(time.Duration(i%7) * time.Second)
		l.observe(ctx, obsAt(float64(100+(i%5)*3), at))

		records, err := store.List(ctx)
		require.NoError(t, err)
		require.LessOrEqual(t, len(records), 2, "after observation %d", i)
	}
}

func TestLedger_PreviousPrice(t *testing.T) {
	ctx := context.Background()

	store := memory.NewHistoryStore()
	l, _ := newTestLedger(store)
	_, ok := l.PreviousPrice(ctx)
	assert.False(t, ok, "empty ledger has no previous price")

	_, err := store.InsertAndTrim(ctx, 90, t0.Unix(), retainedRecords)
	require.NoError(t, err)
	got, ok := l.PreviousPrice(ctx)
	require.True(t, ok)
	assert.Equal(t, 90.0, got)

	_, err = store.InsertAndTrim(ctx, 100, t0.Add(time.Minute).Unix(), retainedRecords)
	require.NoError(t, err)
	got, ok = l.PreviousPrice(ctx)
	require.True(t, ok)
	assert.Equal(t, 90.0, got, "older of the two rows")
}

// failingStore fails every call.
type failingStore struct{}

var errDiskFull = errors.New("disk full")

func (failingStore) List(context.Context) ([]domain.HistoryRecord, error) {
	return nil, errDiskFull
}

func (failingStore) InsertAndTrim(context.Context, float64, int64, int) (domain.HistoryRecord, error) {
	return domain.HistoryRecord{}, errDiskFull
}

// insertFailingStore reads fine but cannot write.
type insertFailingStore struct {
	*memory.HistoryStore
}

func (insertFailingStore) InsertAndTrim(context.Context, float64, int64, int) (domain.HistoryRecord, error) {
	return domain.HistoryRecord{}, errDiskFull
}

func TestLedger_StoreFailuresDegrade(t *testing.T) {
	ctx := context.Background()

	l, _ := newTestLedger(failingStore{})
	_, ok := l.PreviousPrice(ctx)
	assert.False(t, ok)
	assert.Equal(t, metrics.LedgerFailed, l.observe(ctx, obsAt(100, t0)))

	l, _ = newTestLedger(insertFailingStore{memory.NewHistoryStore()})
	assert.Equal(t, metrics.LedgerFailed, l.observe(ctx, obsAt(100, t0)))
}

func TestLedger_RecordIsAppliedByWorker(t *testing.T) {
	store := memory.NewHistoryStore()
	l, clk := newTestLedger(store)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = l.Run(ctx)
	}()

	l.Record(100)
	clk.Add(3 * time.Second)
	l.Record(100)

	assert.Eventually(t, func() bool {
		records, _ := store.List(context.Background())
		return len(records) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestLedger_TimestampTakenAtRecord(t *testing.T) {
	store := memory.NewHistoryStore()
	l, clk := newTestLedger(store)

	l.Record(100)
	clk.Add(time.Hour)

	// The worker has not run yet; the queued observation keeps its time.
	obs := <-l.pending
	assert.Equal(t, t0, obs.at)
}

func TestLedger_FullQueueDropsObservation(t *testing.T) {
	cfg := DefaultLedgerConfig()
	cfg.QueueSize = 1
	l := NewHistoryLedger(memory.NewHistoryStore(), cfg, clock.NewMock(), discardLogger())

	done := make(chan struct{})
	go func() {
		l.Record(1)
		l.Record(2)
		l.Record(3)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}
	assert.Len(t, l.pending, 1)
}
