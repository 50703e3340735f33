package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEachProcessesEveryItem(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	var mu sync.Mutex
	seen := map[int]bool{}

	err := forEach(context.Background(), 3, items, func(_ context.Context, item int) error {
		mu.Lock()
		defer mu.Unlock()
		seen[item] = true
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, len(items))
}

func TestForEachStopsOnError(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	boom := errors.New("boom")

	var mu sync.Mutex
	processed := 0

	err := forEach(context.Background(), 2, items, func(_ context.Context, item int) error {
		mu.Lock()
		processed++
		mu.Unlock()
		if item == 3 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Less(t, processed, len(items))
}

func TestForEachCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := forEach(ctx, 2, []int{1, 2, 3}, func(context.Context, int) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Zero(t, calls)
}

func TestForEachEmptyItems(t *testing.T) {
	err := forEach(context.Background(), 4, nil, func(context.Context, int) error {
		t.Fatal("should not be called")
		return nil
	})
	require.NoError(t, err)
}
