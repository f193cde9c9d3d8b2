// Package aggregate folds typed rows into dashboard views: scalar KPIs,
// grouped metrics, top-K rankings, distributions and ratios. Every function is
// pure; callers recompute views from the full row set whenever it changes.
package aggregate

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultK is the length of every ranking shown on the dashboard.
const DefaultK = 10

type Op int

const (
	Sum Op = iota
	Mean
	Count

	Average = Mean
)

type Direction int

const (
	Descending Direction = iota
	Ascending
)

// ReduceScalar folds one field over all rows. Mean of zero rows is NaN.
func ReduceScalar[T any](rows []T, value func(T) float64, op Op) float64 {
	switch op {
	case Count:
		return float64(len(rows))
	case Mean:
		if len(rows) == 0 {
			return math.NaN()
		}
		return sum(rows, value) / float64(len(rows))
	default:
		return sum(rows, value)
	}
}

func sum[T any](rows []T, value func(T) float64) float64 {
	var total float64
	for _, r := range rows {
		total += value(r)
	}
	return total
}

// Grouped maps a group key to its folded value. Iteration order is
// unspecified; use TopK or ByKey for display order.
type Grouped map[string]float64

// GroupFold buckets rows by key and folds each bucket. Empty keys form their
// own bucket. value is ignored for Count.
func GroupFold[T any](rows []T, key func(T) string, value func(T) float64, op Op) Grouped {
	totals := make(Grouped)
	counts := make(map[string]int)
	for _, r := range rows {
		k := key(r)
		counts[k]++
		if op != Count {
			totals[k] += value(r)
		}
	}

	out := make(Grouped, len(counts))
	for k, n := range counts {
		switch op {
		case Count:
			out[k] = float64(n)
		case Mean:
			out[k] = totals[k] / float64(n)
		default:
			out[k] = totals[k]
		}
	}
	return out
}

type Entry struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// TopK orders groups by value and keeps the first k. Equal values are
// ordered by key; NaN values sort last in either direction. k <= 0 keeps all.
func TopK(g Grouped, k int, dir Direction) []Entry {
	entries := g.Entries()
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := compareValues(a.Value, b.Value, dir); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	if k > 0 && len(entries) > k {
		entries = entries[:k]
	}
	return entries
}

func compareValues(a, b float64, dir Direction) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	if dir == Ascending {
		return cmp.Compare(a, b)
	}
	return cmp.Compare(b, a)
}

// ByKey returns all groups in ascending key order.
func ByKey(g Grouped) []Entry {
	entries := g.Entries()
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Key, b.Key) })
	return entries
}

func (g Grouped) Entries() []Entry {
	entries := make([]Entry, 0, len(g))
	for k, v := range g {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	return entries
}

// Ratio is num/den as a percentage rounded to two places. A zero
// denominator yields ±Inf or NaN, which callers must surface.
func Ratio(num, den float64) float64 {
	return Round2(num / den * 100)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

// DistinctCount counts the distinct keys across rows.
func DistinctCount[T any](rows []T, key func(T) string) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[key(r)] = struct{}{}
	}
	return len(seen)
}

func CountWhere[T any](rows []T, pred func(T) bool) int {
	n := 0
	for _, r := range rows {
		if pred(r) {
			n++
		}
	}
	return n
}
