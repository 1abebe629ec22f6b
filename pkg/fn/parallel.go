package fn

import "sync"

// ParMap applies f to every item using at most workers goroutines and
// returns the results in input order. workers <= 0 means one goroutine
// per item.
func ParMap[T, U any](items []T, workers int, f func(T) U) []U {
	out := make([]U, len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(items[i])
		}(i)
	}
	wg.Wait()
	return out
}

// ParMapResult is ParMap for fallible functions. Pair it with Collect to
// fail on the first error.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	return ParMap(items, workers, f)
}
