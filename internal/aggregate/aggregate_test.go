package aggregate

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sale struct {
	asin  string
	rank  float64
	units float64
}

func id(f float64) float64 { return f }

func TestReduceScalar(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	assert.Equal(t, 10.0, ReduceScalar(values, id, Sum))
	assert.Equal(t, 2.5, ReduceScalar(values, id, Mean))
	assert.Equal(t, 4.0, ReduceScalar(values, id, Count))
}

func TestReduceScalar_EmptyMeanIsNaN(t *testing.T) {
	assert.True(t, math.IsNaN(ReduceScalar([]float64{}, id, Mean)))
	assert.Equal(t, 0.0, ReduceScalar([]float64{}, id, Sum))
}

func TestGroupFold(t *testing.T) {
	rows := []sale{
		{"A", 10, 1},
		{"A", 20, 2},
		{"B", 0, 5},
		{"", 7, 1},
	}
	key := func(s sale) string { return s.asin }

	avg := GroupFold(rows, key, func(s sale) float64 { return s.rank }, Average)
	assert.Equal(t, Grouped{"A": 15, "B": 0, "": 7}, avg)

	total := GroupFold(rows, key, func(s sale) float64 { return s.units }, Sum)
	assert.Equal(t, Grouped{"A": 3, "B": 5, "": 1}, total)

	count := GroupFold(rows, key, nil, Count)
	assert.Equal(t, Grouped{"A": 2, "B": 1, "": 1}, count)
}

func TestTopK_Direction(t *testing.T) {
	g := Grouped{"a": 3, "b": 1, "c": 2}

	assert.Equal(t, []Entry{{"a", 3}, {"c", 2}, {"b", 1}}, TopK(g, 10, Descending))
	assert.Equal(t, []Entry{{"b", 1}, {"c", 2}}, TopK(g, 2, Ascending))
}

func TestTopK_TieBreakByKey(t *testing.T) {
	g := Grouped{"zeta": 5, "alpha": 5, "mid": 5, "low": 1}

	got := TopK(g, 3, Descending)

	assert.Equal(t, []Entry{{"alpha", 5}, {"mid", 5}, {"zeta", 5}}, got)
}

func TestTopK_NaNLast(t *testing.T) {
	g := Grouped{"nan": math.NaN(), "one": 1, "two": 2}

	asc := TopK(g, 0, Ascending)
	require.Len(t, asc, 3)
	assert.Equal(t, "nan", asc[2].Key)

	desc := TopK(g, 0, Descending)
	assert.Equal(t, "nan", desc[2].Key)
}

func TestTopK_Bounds(t *testing.T) {
	for _, n := range []int{0, 3, 10, 25} {
		g := make(Grouped)
		for i := 0; i < n; i++ {
			g[fmt.Sprintf("k%02d", i)] = float64((i * 7) % 13)
		}

		for _, dir := range []Direction{Descending, Ascending} {
			top := TopK(g, DefaultK, dir)
			assert.LessOrEqual(t, len(top), DefaultK)
			assert.LessOrEqual(t, len(top), len(g))

			kept := make(map[string]bool, len(top))
			for _, e := range top {
				kept[e.Key] = true
			}
			for k, v := range g {
				if kept[k] {
					continue
				}
				for _, e := range top {
					if dir == Descending {
						assert.GreaterOrEqual(t, e.Value, v)
					} else {
						assert.LessOrEqual(t, e.Value, v)
					}
				}
			}
		}
	}
}

func TestByKey(t *testing.T) {
	g := Grouped{"2024-02": 2, "2023-12": 5, "2024-01": 1}

	assert.Equal(t, []Entry{{"2023-12", 5}, {"2024-01", 1}, {"2024-02", 2}}, ByKey(g))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 33.33, Ratio(1, 3))
	assert.Equal(t, 250.0, Ratio(5, 2))
	assert.True(t, math.IsInf(Ratio(5, 0), 1))
	assert.True(t, math.IsNaN(Ratio(0, 0)))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, Round2(1.005))
	assert.Equal(t, -2.35, Round2(-2.346))
	assert.True(t, math.IsNaN(Round2(math.NaN())))
}

func TestDistinctAndCountWhere(t *testing.T) {
	rows := []sale{{"A", 1, 0}, {"B", 2, 0}, {"A", 3, 0}}

	assert.Equal(t, 2, DistinctCount(rows, func(s sale) string { return s.asin }))
	assert.Equal(t, 2, CountWhere(rows, func(s sale) bool { return s.asin == "A" }))
}

func BenchmarkGroupFoldTopK(b *testing.B) {
	rows := make([]sale, 50000)
	for i := range rows {
		rows[i] = sale{asin: fmt.Sprintf("B%04d", i%2000), rank: float64(i % 977)}
	}

	b.ResetTimer()
	for b.Loop() {
		g := GroupFold(rows, func(s sale) string { return s.asin }, func(s sale) float64 { return s.rank }, Average)
		_ = TopK(g, DefaultK, Ascending)
	}
}
