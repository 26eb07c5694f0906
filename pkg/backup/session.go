// ABOUTME: Backup session: fetch, save and compare for every inventory device
// ABOUTME: Devices run concurrently; each yields exactly one Result

package backup

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/nainya/confsnap/internal/logger"
	"github.com/nainya/confsnap/pkg/changes"
	"github.com/nainya/confsnap/pkg/inventory"
	"github.com/nainya/confsnap/pkg/snapshot"
)

// DefaultConcurrency is used when Options.Concurrency is not positive.
const DefaultConcurrency = 4

// Status is the terminal outcome of one device in a run.
type Status string

const (
	StatusChanged             Status = "changed"
	StatusNoChange            Status = "no_change"
	StatusInsufficientHistory Status = "insufficient_history"
	StatusFetchFailed         Status = "fetch_failed"
	StatusStorageFailed       Status = "storage_failed"
	StatusCompareFailed       Status = "compare_failed"
)

// Saved reports whether the status implies a snapshot was written.
func (s Status) Saved() bool {
	switch s {
	case StatusChanged, StatusNoChange, StatusInsufficientHistory, StatusCompareFailed:
		return true
	}
	return false
}

// Fetcher retrieves a device's live configuration text.
type Fetcher interface {
	Fetch(ctx context.Context, deviceID string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, deviceID string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, deviceID string) (string, error) {
	return f(ctx, deviceID)
}

// Recorder receives run metrics. *metrics.Metrics implements it.
type Recorder interface {
	RecordFetch(duration time.Duration)
	RecordDeviceResult(status string)
	RecordChangedLines(inserted, deleted int)
	RecordRun(finished time.Time)
}

type nopRecorder struct{}

func (nopRecorder) RecordFetch(time.Duration) {}
func (nopRecorder) RecordDeviceResult(string) {}
func (nopRecorder) RecordChangedLines(int, int) {}
func (nopRecorder) RecordRun(time.Time) {}

// Result is one device's outcome.
type Result struct {
	DeviceID string
	Status   Status
	Saved    *snapshot.Snapshot // nil when fetch or save failed
	Diff     *changes.Result    // nil unless Status is changed or no_change
	Err      error              // set for the *_failed statuses
	Duration time.Duration
}

// Options tune a Session.
type Options struct {
	Concurrency  int           // parallel devices
	FetchTimeout time.Duration // per-device fetch deadline, 0 for none
	Limiter      *rate.Limiter // paces fetches across devices, nil for none
	Logger       *logger.Logger
	Metrics      Recorder
}

// Session runs backup cycles against one store.
type Session struct {
	store    snapshot.Store
	detector *changes.Detector
	fetcher  Fetcher
	opts     Options
}

// NewSession creates a session saving into store with configs from f.
func NewSession(store snapshot.Store, f Fetcher, opts Options) *Session {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	return &Session{
		store:    store,
		detector: changes.NewDetector(store),
		fetcher:  f,
		opts:     opts,
	}
}

// Run backs up every device and returns one Result per device in inventory
// order. Per-device failures are reported in the Result and never stop the
// other devices. A cancelled ctx marks the devices not yet fetched as failed.
func (s *Session) Run(ctx context.Context, devices []inventory.Device) []Result {
	runID := uuid.NewString()
	log := s.opts.Logger.RunLogger(runID)
	started := time.Now()

	log.Info("Backup run starting").Int("devices", len(devices)).Send()

	results := make([]Result, len(devices))
	sem := semaphore.NewWeighted(int64(s.opts.Concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i, d := range devices {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				results[i] = Result{DeviceID: d.Hostname, Status: StatusFetchFailed, Err: &FetchError{DeviceID: d.Hostname, Err: err}}
				return nil
			}
			defer sem.Release(1)

			results[i] = s.backupDevice(gctx, d.Hostname)
			return nil
		})
	}
	// Workers never return errors; failures live in results
	_ = g.Wait()

	counts := make(map[Status]int)
	for _, r := range results {
		s.opts.Metrics.RecordDeviceResult(string(r.Status))
		log.LogDeviceResult(r.DeviceID, string(r.Status), savedKey(r), r.Duration, r.Err)
		counts[r.Status]++
	}

	finished := time.Now()
	s.opts.Metrics.RecordRun(finished)

	summary := log.Info("Backup run completed").Dur("duration_ms", finished.Sub(started))
	for st, n := range counts {
		summary = summary.Int(string(st), n)
	}
	summary.Send()

	return results
}

// Device backs up a single device outside a run.
func (s *Session) Device(ctx context.Context, deviceID string) Result {
	return s.backupDevice(ctx, deviceID)
}

func (s *Session) backupDevice(ctx context.Context, deviceID string) Result {
	start := time.Now()
	res := s.process(ctx, deviceID)
	res.Duration = time.Since(start)
	return res
}

// process runs fetch, save and compare, stopping at the first failure.
func (s *Session) process(ctx context.Context, deviceID string) Result {
	res := Result{DeviceID: deviceID}

	config, err := s.fetch(ctx, deviceID)
	if err != nil {
		res.Status = StatusFetchFailed
		res.Err = err
		return res
	}

	snap, err := s.store.Save(ctx, deviceID, config)
	if err != nil {
		res.Status = StatusStorageFailed
		res.Err = err
		return res
	}
	res.Saved = snap

	diff, err := s.detector.CompareLatest(ctx, deviceID)
	switch {
	case errors.Is(err, changes.ErrInsufficientHistory):
		res.Status = StatusInsufficientHistory
		return res
	case err != nil:
		res.Status = StatusCompareFailed
		res.Err = err
		return res
	}

	res.Diff = diff
	if diff.Changed() {
		st := diff.Stats()
		s.opts.Metrics.RecordChangedLines(st.Inserted, st.Deleted)
		res.Status = StatusChanged
	} else {
		res.Status = StatusNoChange
	}
	return res
}

// fetch applies pacing and the fetch deadline, and checks the text is UTF-8.
func (s *Session) fetch(ctx context.Context, deviceID string) (string, error) {
	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx); err != nil {
			return "", &FetchError{DeviceID: deviceID, Err: err}
		}
	}

	if s.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	config, err := s.fetcher.Fetch(ctx, deviceID)
	s.opts.Metrics.RecordFetch(time.Since(start))
	if err != nil {
		return "", &FetchError{DeviceID: deviceID, Err: err}
	}
	if !utf8.ValidString(config) {
		return "", &FetchError{DeviceID: deviceID, Err: ErrInvalidEncoding}
	}
	return config, nil
}

func savedKey(r Result) string {
	if r.Saved == nil {
		return ""
	}
	return r.Saved.Key()
}
