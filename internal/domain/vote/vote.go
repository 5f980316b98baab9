// Package vote picks the majority value from a list of observations.
package vote

// Majority returns the most frequent value. Ties go to the value seen first.
// An empty list yields "".
func Majority(values []string) string {
	counts := make(map[string]int, len(values))
	order := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	best, bestCount := "", 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
