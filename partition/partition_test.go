package partition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climiter/climiter/gate"
	"github.com/climiter/climiter/limit"
)

func TestNewStaticPartitionsNormalisesWeights(t *testing.T) {
	g := gate.New(limit.NewFixed(10))

	parts, err := NewStaticPartitions(g, []float64{3, 1})
	require.NoError(t, err)
	require.Len(t, parts, 2)
}

func TestNewStaticPartitionsRejectsInvalidWeights(t *testing.T) {
	g := gate.New(limit.NewFixed(10))

	_, err := NewStaticPartitions(g, nil)
	assert.Error(t, err)

	_, err = NewStaticPartitions(g, []float64{1, 0})
	assert.Error(t, err)

	_, err = NewStaticPartitions(g, []float64{1, -1})
	assert.Error(t, err)
}

func TestPartitionAdmitsWithinOwnShare(t *testing.T) {
	g := gate.New(limit.NewFixed(10))
	parts, _ := NewStaticPartitions(g, []float64{1, 1})

	// Each partition's own share is ceil(10*0.5) = 5.
	var tokens []*gate.Token
	for i := 0; i < 5; i++ {
		tok, ok := parts[0].TryAcquire()
		require.True(t, ok)
		tokens = append(tokens, tok)
	}
	assert.Equal(t, 5, parts[0].InFlight())

	for _, tok := range tokens {
		parts[0].Release(tok, nil)
	}
}

func TestPartitionBorrowsSpareFromSiblings(t *testing.T) {
	g := gate.New(limit.NewFixed(10))
	parts, _ := NewStaticPartitions(g, []float64{1, 1})

	// Partition 0's own share is 5; exhaust it, then it should still be able to borrow
	// from partition 1's untouched spare.
	var tokens []*gate.Token
	for i := 0; i < 5; i++ {
		tok, ok := parts[0].TryAcquire()
		require.True(t, ok)
		tokens = append(tokens, tok)
	}

	tok, ok := parts[0].TryAcquire()
	assert.True(t, ok, "expected to borrow spare capacity from the sibling partition")
	tokens = append(tokens, tok)

	for _, tok := range tokens {
		parts[0].Release(tok, nil)
	}
}

func TestPartitionRejectsWhenNoSpareRemains(t *testing.T) {
	g := gate.New(limit.NewFixed(2))
	parts, _ := NewStaticPartitions(g, []float64{1, 1})

	t1, ok1 := parts[0].TryAcquire()
	require.True(t, ok1)
	t2, ok2 := parts[1].TryAcquire()
	require.True(t, ok2)

	_, ok3 := parts[0].TryAcquire()
	assert.False(t, ok3)

	parts[0].Release(t1, nil)
	parts[1].Release(t2, nil)
}

func TestPartitionAcquireTimeoutServesWaitersFIFO(t *testing.T) {
	g := gate.New(limit.NewFixed(1))
	parts, _ := NewStaticPartitions(g, []float64{1, 1})

	holder, ok := parts[0].TryAcquire()
	require.True(t, ok)

	order := make(chan int, 2)
	go func() {
		if _, ok := parts[0].AcquireTimeout(context.Background(), time.Second); ok {
			order <- 0
		}
	}()
	time.Sleep(10 * time.Millisecond) // ensure this waiter enqueues first
	go func() {
		if _, ok := parts[1].AcquireTimeout(context.Background(), time.Second); ok {
			order <- 1
		}
	}()
	time.Sleep(10 * time.Millisecond)

	parts[0].Release(holder, nil)

	first := <-order
	assert.Equal(t, 0, first)
}

func TestPartitionAcquireTimeoutExpiresCleanly(t *testing.T) {
	g := gate.New(limit.NewFixed(1))
	parts, _ := NewStaticPartitions(g, []float64{1, 1})

	holder, ok := parts[0].TryAcquire()
	require.True(t, ok)

	_, ok = parts[1].AcquireTimeout(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
	assert.False(t, parts[1].HasWaiters())

	parts[0].Release(holder, nil)
}
