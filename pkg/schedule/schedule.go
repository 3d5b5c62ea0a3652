// Package schedule runs housekeeping tasks on cron expressions.
//
//	s := schedule.New()
//	s.Add("kv:purge", "*/15 * * * *", purgeExpired)
//	s.Run(ctx) // blocks until ctx is cancelled
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carepath-academy/carepath/pkg/logger"
)

// Task is a scheduled unit of work.
type Task func(ctx context.Context) error

// Entry describes a registered task for schedule:list style output.
type Entry struct {
	Name string
	Spec string
	Next time.Time
}

type Scheduler struct {
	c     *cron.Cron
	ctx   context.Context
	specs map[string]string
	ids   map[string]cron.EntryID
}

// New builds a scheduler in UTC. Overlapping runs of the same task are
// skipped and panics are recovered.
func New(opts ...cron.Option) *Scheduler {
	l := cronLogger{l: logger.L}
	base := []cron.Option{
		cron.WithLocation(time.UTC),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	}
	return &Scheduler{
		c:     cron.New(append(base, opts...)...),
		ctx:   context.Background(),
		specs: map[string]string{},
		ids:   map[string]cron.EntryID{},
	}
}

// Add registers task under a unique name.
func (s *Scheduler) Add(name, spec string, task Task) error {
	if _, dup := s.ids[name]; dup {
		return fmt.Errorf("schedule: task %q already registered", name)
	}
	id, err := s.c.AddFunc(spec, func() { s.runTask(name, task) })
	if err != nil {
		return fmt.Errorf("schedule: %s: %w", name, err)
	}
	s.ids[name] = id
	s.specs[name] = spec
	return nil
}

func (s *Scheduler) runTask(name string, task Task) {
	start := time.Now()
	log := logger.L.With("task", name)
	if err := task(s.ctx); err != nil {
		log.Error("schedule: task failed", "error", err, "duration", time.Since(start).String())
		return
	}
	log.Info("schedule: task done", "duration", time.Since(start).String())
}

// RunNow executes a task immediately, outside the cron clock.
func (s *Scheduler) RunNow(name string) error {
	id, ok := s.ids[name]
	if !ok {
		return fmt.Errorf("schedule: unknown task %q", name)
	}
	s.c.Entry(id).WrappedJob.Run()
	return nil
}

// Entries lists registered tasks sorted by name.
func (s *Scheduler) Entries() []Entry {
	out := make([]Entry, 0, len(s.ids))
	for name, id := range s.ids {
		out = append(out, Entry{Name: name, Spec: s.specs[name], Next: s.c.Entry(id).Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run starts the clock and blocks until ctx is done, then waits for running
// tasks to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.c.Start()
	logger.Info("schedule: started", "tasks", len(s.ids))
	<-ctx.Done()
	<-s.c.Stop().Done()
	logger.Info("schedule: stopped")
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) { c.l.Debug("cron: "+msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("cron: "+msg, append(kv, "error", err)...)
}
