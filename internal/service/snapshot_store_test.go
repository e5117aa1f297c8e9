package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
)

func TestSnapshotStore_SingleSlot(t *testing.T) {
	s := NewSnapshotStore()
	_, ok := s.Get()
	assert.False(t, ok)

	s.Put(domain.OracleSnapshot{Price: 1}, time.Unix(10, 0))
	s.Put(domain.OracleSnapshot{Price: 2}, time.Unix(20, 0))

	got, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Snapshot.Price)
	assert.Equal(t, time.Unix(20, 0), got.CapturedAt)
}

func TestSnapshotStore_GetReturnsCopy(t *testing.T) {
	s := NewSnapshotStore()
	s.Put(domain.OracleSnapshot{Price: 1, PriceState: domain.PriceStateFresh}, time.Unix(10, 0))

	got, _ := s.Get()
	got.Snapshot.PriceState = domain.PriceStateStale

	again, _ := s.Get()
	assert.Equal(t, domain.PriceStateFresh, again.Snapshot.PriceState)
}

func TestSnapshotStore_ConcurrentAccess(t *testing.T) {
	s := NewSnapshotStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Put(domain.OracleSnapshot{Price: float64(i)}, time.Unix(int64(i), 0))
			got, ok := s.Get()
			assert.True(t, ok)
			assert.Equal(t, got.Snapshot.Price, float64(got.CapturedAt.Unix()), "torn read")
		}(i)
	}
	wg.Wait()
}
