package parallel

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryItem(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 100} {
		seen := make([]int32, 37)
		Parallelize(len(seen), workers, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, n := range seen {
			assert.Equal(t, int32(1), n, "workers=%d item=%d", workers, i)
		}
	}
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, 4, func(int, int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(10, 100, 4, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, int32(1), calls)
}

func TestForEach(t *testing.T) {
	out := make([]int, 20)
	err := ForEach(len(out), 4, func(i int) error {
		out[i] = i * i
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 361, out[19])

	err = ForEach(20, 4, func(i int) error {
		if i == 5 || i == 15 {
			return fmt.Errorf("tree %d failed", i)
		}
		return nil
	})
	assert.EqualError(t, err, "tree 5 failed")
}
