// Package scheduler applies scenes on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homepanel/pkg/device"
)

// SceneApplier is the part of the home store the scheduler drives.
type SceneApplier interface {
	Scenes() []device.Scene
	ApplyScene(ctx context.Context, id string, trigger device.Trigger) error
}

// Job applies Scene (an id or a case-insensitive name) whenever Cron fires.
// Cron uses the standard five-field syntax or a descriptor such as @daily.
type Job struct {
	Scene string
	Cron  string
}

// Entry describes a registered job.
type Entry struct {
	Job
	Next time.Time
	Prev time.Time
}

// Scheduler runs scene jobs.
type Scheduler struct {
	cron    *cron.Cron
	applier SceneApplier
	timeout time.Duration

	mu      sync.Mutex
	entries map[cron.EntryID]Job
}

// New creates a Scheduler. Each run is bounded by timeout; zero means one
// minute.
func New(applier SceneApplier, timeout time.Duration, opts ...cron.Option) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	opts = append([]cron.Option{cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))}, opts...)
	return &Scheduler{
		cron:    cron.New(opts...),
		applier: applier,
		timeout: timeout,
		entries: make(map[cron.EntryID]Job),
	}
}

// Add registers job. The scene is resolved each time the job fires so scenes
// created later can still be scheduled.
func (s *Scheduler) Add(job Job) error {
	id, err := s.cron.AddFunc(job.Cron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Run(ctx, job.Scene); err != nil {
			log.Error().Err(err).Str("scene", job.Scene).Str("cron", job.Cron).Msg("Scheduled scene failed")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling %q with %q: %w", job.Scene, job.Cron, err)
	}

	s.mu.Lock()
	s.entries[id] = job
	s.mu.Unlock()

	log.Info().Str("scene", job.Scene).Str("cron", job.Cron).Msg("Scheduled scene")
	return nil
}

// Run resolves scene and applies it with trigger scheduled.
func (s *Scheduler) Run(ctx context.Context, scene string) error {
	sc, ok := Resolve(s.applier.Scenes(), scene)
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrSceneNotFound, scene)
	}
	log.Info().Str("scene", sc.Name).Msg("Running scheduled scene")
	return s.applier.ApplyScene(ctx, sc.ID, device.TriggerScheduled)
}

// Entries lists registered jobs with their next and previous fire times.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.cron.Entries() {
		job, ok := s.entries[e.ID]
		if !ok {
			continue
		}
		out = append(out, Entry{Job: job, Next: e.Next, Prev: e.Prev})
	}
	return out
}

// Start runs the scheduler until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Resolve finds a scene by id, then by case-insensitive name.
func Resolve(scenes []device.Scene, ref string) (device.Scene, bool) {
	for _, sc := range scenes {
		if sc.ID == ref {
			return sc, true
		}
	}
	for _, sc := range scenes {
		if strings.EqualFold(sc.Name, ref) {
			return sc, true
		}
	}
	return device.Scene{}, false
}
