package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"fortio.org/fortio/stats"
	"github.com/geseq/rtkernel"
	"github.com/loov/hrtime"
)

var percentiles = []float64{50, 75, 90, 95, 99, 99.9}

func main() {
	mode := flag.String("mode", "pool", "pool or spawn")
	duration := flag.Int("duration", 10, "benchmark duration in seconds")
	size := flag.Int("size", 256, "object or working area size in bytes")
	n := flag.Int("n", 64, "objects or working areas in the pool")
	pd := flag.Int("p", 2, "print interval in seconds")
	gc := flag.Bool("gc", true, "use gc")
	flag.Parse()

	if !*gc {
		debug.SetGCPercent(-1)
	}

	s := rtkernel.NewSystem()
	end := time.Now().Add(time.Duration(*duration) * time.Second)
	interval := time.Duration(*pd) * time.Second

	switch *mode {
	case "pool":
		benchPool(s, *size, *n, end, interval)
	case "spawn":
		benchSpawn(s, *size, *n, end, interval)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
}

func benchPool(s *rtkernel.System, size, n int, end time.Time, interval time.Duration) {
	mp := rtkernel.NewPool(s, size, nil)
	mp.LoadArray(make([]byte, size*n), n)

	allocHist := stats.NewHistogram(0, 1)
	freeHist := stats.NewHistogram(0, 1)
	objs := make([][]byte, 0, n)

	var ops uint64
	start := time.Now()
	for time.Now().Before(end) {
		for {
			ts := hrtime.Now()
			obj := mp.Alloc()
			allocHist.Record(float64(hrtime.Since(ts)))
			if obj == nil {
				break
			}
			objs = append(objs, obj)
		}
		for _, obj := range objs {
			ts := hrtime.Now()
			mp.Free(obj)
			freeHist.Record(float64(hrtime.Since(ts)))
		}
		ops += uint64(2*len(objs) + 1)
		objs = objs[:0]

		if time.Since(start) > interval {
			fmt.Printf("ops/s: %.0f\n", rate(ops, time.Since(start)))
			ops = 0
			start = time.Now()
		}
	}

	allocHist.Print(os.Stdout, "alloc ns", percentiles)
	freeHist.Print(os.Stdout, "free ns", percentiles)
}

func benchSpawn(s *rtkernel.System, size, n int, end time.Time, interval time.Duration) {
	tp := rtkernel.NewThreadsPool(s, size, n)
	body := func(t *rtkernel.Thread, arg any) rtkernel.Msg { return rtkernel.MsgOK }

	spawnHist := stats.NewHistogram(0, 1)

	var ops, rejected uint64
	start := time.Now()
	for time.Now().Before(end) {
		ts := hrtime.Now()
		t := tp.Start("bench", rtkernel.NormalPrio, body, nil)
		lat := hrtime.Since(ts)
		if t == nil {
			rejected++
			runtime.Gosched()
			continue
		}
		spawnHist.Record(float64(lat))
		s.Release(t)
		ops++

		if time.Since(start) > interval {
			fmt.Printf("spawns/s: %.0f rejected: %d\n", rate(ops, time.Since(start)), rejected)
			ops, rejected = 0, 0
			start = time.Now()
		}
	}

	spawnHist.Print(os.Stdout, "spawn ns", percentiles)
}

// rate returns events per second over elapsed
func rate(n uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) / elapsed.Seconds()
}
