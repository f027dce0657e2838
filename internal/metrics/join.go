package metrics

import (
	"github.com/noah-isme/commerce-metrics-api/internal/models"
)

// Join performs an inner join of left and right on the keys produced by leftKey and rightKey.
// Left rows without a match are dropped. A left row matching several right rows yields one output
// row per match, in left order and then right order. The returned stats count what was dropped.
func Join[L, R, O any](name string, left []L, right []R, leftKey func(L) string, rightKey func(R) string, merge func(L, R) O) ([]O, models.JoinStats) {
	index := make(map[string][]int, len(right))
	for i, r := range right {
		k := rightKey(r)
		index[k] = append(index[k], i)
	}

	stats := models.JoinStats{Name: name, LeftRows: len(left), RightRows: len(right)}
	out := make([]O, 0, len(left))
	for _, l := range left {
		matches := index[leftKey(l)]
		if len(matches) == 0 {
			stats.DroppedLeft++
			continue
		}
		stats.MatchedLeft++
		for _, idx := range matches {
			out = append(out, merge(l, right[idx]))
		}
	}
	stats.OutputRows = len(out)
	return out, stats
}

// DistinctBy keeps the first row for every key.
func DistinctBy[T any, K comparable](rows []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		k := key(row)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out
}
