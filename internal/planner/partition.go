package planner

// Partition splits items into consecutive groups of at most capacity
// elements, preserving order. The last group may be shorter. An empty input
// yields no groups. A capacity below 1 is treated as 1.
func Partition[T any](items []T, capacity int) [][]T {
	if capacity < 1 {
		capacity = 1
	}
	if len(items) == 0 {
		return [][]T{}
	}

	groups := make([][]T, 0, (len(items)+capacity-1)/capacity)
	for start := 0; start < len(items); start += capacity {
		end := min(start+capacity, len(items))
		// Full slice expression so appends on a group never bleed into the next one.
		groups = append(groups, items[start:end:end])
	}
	return groups
}
