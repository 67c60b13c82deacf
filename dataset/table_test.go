package dataset

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ride struct {
	ID      int
	Station int
}

type station struct {
	ID   int
	Name string
}

func TestFilterMapPreserveOrder(t *testing.T) {
	rows := make([]int, 10000)
	for i := range rows {
		rows[i] = i
	}
	tbl := FromSlice(rows)

	even := Filter(tbl, func(v int) bool { return v%2 == 0 })
	assert.Equal(t, 5000, even.Count())
	assert.Equal(t, 0, even.At(0))
	assert.Equal(t, 9998, even.At(4999))

	labels := Map(even, func(v int) string { return fmt.Sprint(v) })
	assert.Equal(t, "9998", labels.At(4999))

	small := FilterMap(tbl, func(v int) (int, bool) { return v * 10, v < 3 })
	assert.Equal(t, []int{0, 10, 20}, small.Rows())

	assert.Equal(t, 10000, tbl.Count(), "input is not modified")
}

func TestAll(t *testing.T) {
	tbl := FromSlice([]int{3, 1, 2})
	assert.Equal(t, []int{3, 1, 2}, slices.Collect(tbl.All()))

	var first []int
	for v := range tbl.All() {
		first = append(first, v)
		break
	}
	assert.Equal(t, []int{3}, first)
}

func TestLeftJoin(t *testing.T) {
	rides := FromSlice([]ride{{1, 10}, {2, 99}, {3, 20}, {4, 10}})
	stations := FromSlice([]station{{10, "a"}, {20, "b"}})

	type joined struct {
		Ride    int
		Name    string
		Matched bool
	}
	out := LeftJoin(rides, stations,
		func(r ride) int { return r.Station },
		func(s station) int { return s.ID },
		func(r ride, s station, ok bool) joined { return joined{r.ID, s.Name, ok} },
	)

	require.Equal(t, 4, out.Count())
	assert.Equal(t, []joined{
		{1, "a", true},
		{2, "", false},
		{3, "b", true},
		{4, "a", true},
	}, out.Rows())
}

func TestLeftJoinDuplicateRightKeys(t *testing.T) {
	rides := FromSlice([]ride{{1, 10}})
	stations := FromSlice([]station{{10, "a"}, {10, "b"}})

	out := LeftJoin(rides, stations,
		func(r ride) int { return r.Station },
		func(s station) int { return s.ID },
		func(_ ride, s station, _ bool) string { return s.Name },
	)
	assert.Equal(t, []string{"a", "b"}, out.Rows())
}

func TestConcatAndEmpty(t *testing.T) {
	a := FromSlice([]int{1})
	b := FromSlice([]int{2, 3})
	assert.Equal(t, []int{1, 2, 3}, a.Concat(b).Rows())
	assert.Equal(t, 0, Empty[int]().Count())
	assert.Equal(t, 1, a.Count())
}
