package aggregate

import (
	"cmp"
	"math"
	"slices"
	"strconv"
)

type Bin struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// BinFixedWidth counts values into buckets of the given width labelled by
// their lower bound to one decimal, so with width 0.5 the value 4.3 lands in
// "4.0" and 4.6 in "4.5". Negative values land in negative buckets, while
// NaN and infinite values are not counted. Bins come back in ascending bound
// order; empty buckets are omitted.
func BinFixedWidth(values []float64, width float64) []Bin {
	counts := make(map[float64]int)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		counts[math.Floor(v/width)*width]++
	}

	bounds := make([]float64, 0, len(counts))
	for b := range counts {
		bounds = append(bounds, b)
	}
	slices.SortFunc(bounds, cmp.Compare[float64])

	bins := make([]Bin, 0, len(bounds))
	for _, b := range bounds {
		bins = append(bins, Bin{Label: strconv.FormatFloat(b, 'f', 1, 64), Count: counts[b]})
	}
	return bins
}

// Range is a labelled interval (Min, Max]. When Min equals Max the range
// matches that exact value.
type Range struct {
	Label string
	Min   float64
	Max   float64
}

func (r Range) contains(v float64) bool {
	if r.Min == r.Max {
		return v == r.Min
	}
	return v > r.Min && v <= r.Max
}

// ReviewCountRanges are the breakpoints used for count-like metrics.
var ReviewCountRanges = []Range{
	{Label: "0", Min: 0, Max: 0},
	{Label: "1-10", Min: 0, Max: 10},
	{Label: "11-50", Min: 10, Max: 50},
	{Label: "51-100", Min: 50, Max: 100},
	{Label: ">100", Min: 100, Max: math.Inf(1)},
}

// BinRanges counts values into the first matching range. Output follows the
// declared range order; ranges with no values are omitted, and values that
// fall in no range (negative, NaN) are not counted.
func BinRanges(values []float64, ranges []Range) []Bin {
	counts := make([]int, len(ranges))
	for _, v := range values {
		for i, r := range ranges {
			if r.contains(v) {
				counts[i]++
				break
			}
		}
	}

	bins := make([]Bin, 0, len(ranges))
	for i, r := range ranges {
		if counts[i] > 0 {
			bins = append(bins, Bin{Label: r.Label, Count: counts[i]})
		}
	}
	return bins
}

// RangeLabel returns the label of the range containing v, or "" when none does.
func RangeLabel(v float64, ranges []Range) string {
	for _, r := range ranges {
		if r.contains(v) {
			return r.Label
		}
	}
	return ""
}
