package rtkernel

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"fortio.org/fortio/stats"
	"github.com/loov/hrtime"
)

func BenchmarkPoolAllocFree(b *testing.B) {
	s := NewSystem()
	mp, _ := loadedPool(s, 64, 1024)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		mp.Free(mp.Alloc())
	}
}

func BenchmarkPoolAllocFreeParallel(b *testing.B) {
	s := NewSystem()
	mp, _ := loadedPool(s, 64, 1024)

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			obj := mp.Alloc()
			if obj != nil {
				mp.Free(obj)
			}
		}
	})
}

func BenchmarkPoolLatency(b *testing.B) {
	var mu sync.Mutex
	allocHist := stats.NewHistogram(0, 1)
	freeHist := stats.NewHistogram(0, 1)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a, f := runPoolLatency(time.Second)

			mu.Lock()
			allocHist.Transfer(a)
			freeHist.Transfer(f)
			mu.Unlock()
		}
	})

	printResultsWithPercentiles(b, "Pool Alloc", allocHist)
	printResultsWithPercentiles(b, "Pool Free", freeHist)
}

func runPoolLatency(duration time.Duration) (*stats.Histogram, *stats.Histogram) {
	s := NewSystem()
	mp, _ := loadedPool(s, 64, 16)

	allocHist := stats.NewHistogram(0, 1)
	freeHist := stats.NewHistogram(0, 1)
	objs := make([][]byte, 0, 16)

	end := hrtime.Now() + duration
	for hrtime.Now() < end {
		for {
			start := hrtime.Now()
			obj := mp.Alloc()
			allocHist.Record(float64(hrtime.Since(start)))
			if obj == nil {
				break
			}
			objs = append(objs, obj)
		}

		runtime.Gosched()

		for _, obj := range objs {
			start := hrtime.Now()
			mp.Free(obj)
			freeHist.Record(float64(hrtime.Since(start)))
		}
		objs = objs[:0]
	}

	return allocHist, freeHist
}

func BenchmarkSpawnLatency(b *testing.B) {
	s := NewSystem()
	tp := NewThreadsPool(s, 256, 64)
	spawnHist := stats.NewHistogram(0, 1)
	body := func(t *Thread, arg any) Msg { return MsgOK }

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		start := hrtime.Now()
		t := tp.Start("bench", NormalPrio, body, nil)
		spawnHist.Record(float64(hrtime.Since(start)))
		if t == nil {
			b.Fatal("threads pool exhausted")
		}
		s.Wait(t)
	}

	b.StopTimer()
	printResultsWithPercentiles(b, "Spawn From Pool", spawnHist)
}

func BenchmarkSpawnThroughput(b *testing.B) {
	s := NewSystem()
	tp := NewThreadsPool(s, 256, 64)
	body := func(t *Thread, arg any) Msg { return MsgOK }

	var spawned, rejected int
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		t := tp.Start("bench", NormalPrio, body, nil)
		if t == nil {
			rejected++
			runtime.Gosched()
			continue
		}
		s.Release(t)
		spawned++
	}

	b.StopTimer()
	b.ReportMetric(float64(rejected)/float64(b.N), "rejected/op")
	b.Logf("spawned %d rejected %d", spawned, rejected)
}

func printResultsWithPercentiles(b *testing.B, operationName string, h *stats.Histogram) {
	percentiles := []float64{50, 75, 90, 95, 99, 99.9}

	data := h.Export().CalcPercentiles(percentiles)
	b.Logf("Operation: %s (%d samples, avg %.0f ns)", operationName, data.Count, data.Avg)
	for _, p := range data.Percentiles {
		b.Logf("%v: %.0f ns", p.Percentile, p.Value)
	}
}
