package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"fortio.org/fortio/stats"
	"github.com/geseq/rtkernel"
	"github.com/geseq/rtkernel/internal/config"
	"github.com/geseq/rtkernel/internal/logging"
	"github.com/geseq/rtkernel/osal"
	"github.com/loov/hrtime"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type counters struct {
	spawned   atomic.Uint64
	rejected  atomic.Uint64
	completed atomic.Uint64

	mu       sync.Mutex
	spawnLat *stats.Histogram
	runTime  *stats.Histogram
}

func main() {
	path := flag.String("config", "", "path to the YAML configuration")
	flag.Parse()

	if err := run(*path); err != nil {
		fmt.Fprintln(os.Stderr, "spawnd:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger, w, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if c, ok := w.(io.Closer); ok {
		defer c.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := rtkernel.NewSystem(
		rtkernel.WithLogger(logger.With().Str("component", "kernel").Logger()),
		rtkernel.WithChecks(cfg.Kernel.Checks),
		rtkernel.WithStackFill(cfg.Kernel.StackFill),
		rtkernel.WithTraceBuffer(cfg.Kernel.TraceBuffer),
	)
	o := osal.New(s, osal.Limits{})

	c := &counters{
		spawnLat: stats.NewHistogram(0, 1),
		runTime:  stats.NewHistogram(0, 1),
	}

	// workers report their run time on a queue drained by a collector task
	results, err := o.QueueCreate("results", cfg.Spawn.Threads, 8)
	if err != nil {
		return fmt.Errorf("results queue: %w", err)
	}
	collector, err := o.TaskCreate("collector", collect(o, results, c), make([]byte, 1024), 1)
	if err != nil {
		return fmt.Errorf("collector task: %w", err)
	}

	var sched *cron.Cron
	if cfg.Stats.Schedule != "" {
		sched = cron.New(cron.WithSeconds())
		if _, err := sched.AddFunc(cfg.Stats.Schedule, func() { report(logger, s, c) }); err != nil {
			return fmt.Errorf("stats schedule: %w", err)
		}
		sched.Start()
	}

	tp := rtkernel.NewThreadsPool(s, cfg.Spawn.WorkingArea, cfg.Spawn.Threads)
	logger.Info().Int("threads", cfg.Spawn.Threads).Int("working_area", cfg.Spawn.WorkingArea).Msg("spawnd started")

	spawn(ctx, logger, s, tp, o, results, cfg.Spawn, c)

	shutdown(logger, s, o, collector)
	if sched != nil {
		<-sched.Stop().Done()
	}
	report(logger, s, c)

	return nil
}

func worker(o *osal.OSAL, results osal.QueueID, work time.Duration) rtkernel.ThreadFunc {
	return func(t *rtkernel.Thread, arg any) rtkernel.Msg {
		start := hrtime.Now()
		msg := rtkernel.Sleep(t.Context(), work)

		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(hrtime.Since(start)))
		if err := o.QueuePut(t.Context(), results, buf[:]); err != nil {
			return rtkernel.MsgReset
		}

		if msg == rtkernel.MsgReset {
			return rtkernel.MsgReset
		}
		return rtkernel.MsgOK
	}
}

func spawn(ctx context.Context, logger zerolog.Logger, s *rtkernel.System, tp *rtkernel.ThreadsPool,
	o *osal.OSAL, results osal.QueueID, cfg config.SpawnConfig, c *counters) {
	body := worker(o, results, cfg.Work)

	for n := 0; cfg.Jobs == 0 || n < cfg.Jobs; {
		start := hrtime.Now()
		t := tp.Start(fmt.Sprintf("worker-%d", n), rtkernel.Prio(cfg.Priority), body, n)
		if t == nil {
			c.rejected.Add(1)
			logger.Debug().Int("available", tp.Available()).Msg("threads pool exhausted, backing off")
			if rtkernel.Sleep(ctx, cfg.Backoff) == rtkernel.MsgReset {
				return
			}
			continue
		}

		c.mu.Lock()
		c.spawnLat.Record(float64(hrtime.Since(start)))
		c.mu.Unlock()

		// detached, the working area returns to the pool on exit
		s.Release(t)
		c.spawned.Add(1)
		n++

		if rtkernel.Sleep(ctx, cfg.Interval) == rtkernel.MsgReset {
			return
		}
	}

	<-ctx.Done()
}

func collect(o *osal.OSAL, results osal.QueueID, c *counters) osal.TaskFunc {
	return func(t *rtkernel.Thread) {
		buf := make([]byte, 8)
		for !t.ShouldTerminate() {
			n, err := o.QueueGet(t.Context(), results, buf, 100*time.Millisecond)
			if errors.Is(err, osal.ErrQueueTimeout) {
				continue
			}
			if err != nil {
				return
			}
			if n != len(buf) {
				continue
			}

			c.completed.Add(1)
			c.mu.Lock()
			c.runTime.Record(float64(binary.LittleEndian.Uint64(buf)))
			c.mu.Unlock()
		}
	}
}

func shutdown(logger zerolog.Logger, s *rtkernel.System, o *osal.OSAL, collector osal.TaskID) {
	logger.Info().Int("threads", s.ThreadCount()).Msg("shutting down")

	var waiting []*rtkernel.Thread
	for t := s.FirstThread(); t != nil; t = s.NextThread(t) {
		if t.Name() == "collector" {
			continue
		}
		s.Terminate(s.AddRef(t))
		waiting = append(waiting, t)
	}
	for _, t := range waiting {
		s.Wait(t)
	}

	if err := o.TaskDelete(collector); err != nil {
		logger.Warn().Err(err).Msg("collector already gone")
	}
}

func report(logger zerolog.Logger, s *rtkernel.System, c *counters) {
	c.mu.Lock()
	spawnP := c.spawnLat.Export().CalcPercentiles([]float64{50, 99})
	work := c.runTime.Export().CalcPercentiles([]float64{50, 99})
	c.mu.Unlock()

	ev := logger.Info().
		Uint64("spawned", c.spawned.Load()).
		Uint64("rejected", c.rejected.Load()).
		Uint64("completed", c.completed.Load()).
		Int("threads", s.ThreadCount()).
		Uint64("trace_records", s.TraceWritten())
	for _, p := range spawnP.Percentiles {
		ev = ev.Dur(fmt.Sprintf("spawn_p%g", p.Percentile), time.Duration(p.Value))
	}
	for _, p := range work.Percentiles {
		ev = ev.Dur(fmt.Sprintf("run_p%g", p.Percentile), time.Duration(p.Value))
	}
	ev.Msg("stats")
}
