package fn

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// Filter keeps the elements for which pred is true.
func Filter[T any](items []T, pred func(T) bool) []T {
	var out []T
	for _, v := range items {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// Reduce folds items into a single accumulator value.
func Reduce[T, Acc any](items []T, init Acc, f func(Acc, T) Acc) Acc {
	acc := init
	for _, v := range items {
		acc = f(acc, v)
	}
	return acc
}

// Unique drops duplicate elements, preserving first-appearance order.
func Unique[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	var out []T
	for _, v := range items {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Chunk splits items into consecutive slices of at most n elements.
// Returns nil when n <= 0.
func Chunk[T any](items []T, n int) [][]T {
	if n <= 0 {
		return nil
	}
	var out [][]T
	for i := 0; i < len(items); i += n {
		end := min(i+n, len(items))
		out = append(out, items[i:end])
	}
	return out
}
