package fn

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
)

func TestResultOk(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok result should report ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("Unwrap = (%d, %v)", v, err)
	}
	if r.Must() != 42 {
		t.Error("Must should return the value")
	}
	if r.UnwrapOr(7) != 42 {
		t.Error("UnwrapOr should prefer the held value")
	}
}

func TestResultErr(t *testing.T) {
	boom := errors.New("boom")
	r := Err[int](boom)
	if r.IsOk() || !r.IsErr() {
		t.Fatal("Err result should report error")
	}
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Errorf("Unwrap error = %v", err)
	}
	if r.UnwrapOr(7) != 7 {
		t.Error("UnwrapOr should return the fallback")
	}
}

func TestResultMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Must on an error Result should panic")
		}
	}()
	Err[string](errors.New("nope")).Must()
}

func TestErrf(t *testing.T) {
	r := Errf[int]("turbine %s offline", "WTG-03")
	_, err := r.Unwrap()
	if err == nil || !strings.Contains(err.Error(), "WTG-03") {
		t.Errorf("Errf error = %v", err)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair("ok", nil); r.IsErr() {
		t.Error("nil error should produce Ok")
	}
	if r := FromPair("", errors.New("bad")); r.IsOk() {
		t.Error("non-nil error should produce Err")
	}
}

func TestCollect(t *testing.T) {
	all := []Result[int]{Ok(1), Ok(2), Ok(3)}
	r := Collect(all)
	vals, err := r.Unwrap()
	if err != nil || len(vals) != 3 || vals[2] != 3 {
		t.Fatalf("Collect = (%v, %v)", vals, err)
	}

	all[1] = Err[int](errors.New("middle failed"))
	if r := Collect(all); r.IsOk() {
		t.Error("Collect should fail when any element failed")
	}
}

func TestMap(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if len(doubled) != 3 || doubled[2] != 6 {
		t.Errorf("Map = %v", doubled)
	}
}

func TestFilter(t *testing.T) {
	winds := []float64{2.1, 5.4, 14.0, 3.3}
	cutIn := Filter(winds, func(w float64) bool { return w >= 3.0 })
	if len(cutIn) != 3 {
		t.Errorf("Filter kept %d elements, want 3", len(cutIn))
	}
	if cutIn[0] != 5.4 {
		t.Error("Filter should preserve order")
	}
}

func TestReduce(t *testing.T) {
	sum := Reduce([]int{1, 2, 3, 4}, 0, func(acc, v int) int { return acc + v })
	if sum != 10 {
		t.Errorf("Reduce = %d, want 10", sum)
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]string{"gearbox", "blade", "gearbox", "tower", "blade"})
	want := []string{"gearbox", "blade", "tower"}
	if len(got) != len(want) {
		t.Fatalf("Unique = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Unique[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 {
		t.Fatalf("Chunk produced %d chunks, want 3", len(chunks))
	}
	if len(chunks[2]) != 1 || chunks[2][0] != 5 {
		t.Errorf("last chunk = %v", chunks[2])
	}
	if Chunk([]int{1}, 0) != nil {
		t.Error("Chunk with n <= 0 should return nil")
	}
}

func TestParMapPreservesOrder(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	got := ParMap(items, 8, func(v int) string { return fmt.Sprintf("item-%d", v) })
	for i, s := range got {
		if s != fmt.Sprintf("item-%d", i) {
			t.Fatalf("ParMap[%d] = %q", i, s)
		}
	}
}

func TestParMapBoundsConcurrency(t *testing.T) {
	var active, peak int64
	items := make([]int, 20)
	ParMap(items, 3, func(int) struct{} {
		n := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		atomic.AddInt64(&active, -1)
		return struct{}{}
	})
	if peak > 3 {
		t.Errorf("observed %d concurrent workers, limit was 3", peak)
	}
}

func TestParMapEmptyAndZeroWorkers(t *testing.T) {
	if got := ParMap(nil, 4, func(v int) int { return v }); len(got) != 0 {
		t.Error("empty input should produce empty output")
	}
	got := ParMap([]int{1, 2}, 0, func(v int) int { return v + 1 })
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("ParMap with workers=0 = %v", got)
	}
}

func TestParMapResultWithCollect(t *testing.T) {
	results := ParMapResult([]int{1, 2, 3}, 2, func(v int) Result[int] {
		if v == 2 {
			return Err[int](errors.New("two is bad"))
		}
		return Ok(v * 10)
	})
	if Collect(results).IsOk() {
		t.Error("Collect should surface a worker failure")
	}
}
