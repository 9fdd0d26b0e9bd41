// Package monitor implements the acquisition engine: it reassembles raw
// device reports into complete snapshots on a background worker and fans
// each snapshot out to registered observers.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/airco2ctl/internal/errors"
	"codeberg.org/mutker/airco2ctl/internal/logger"
)

const (
	DefaultReadTimeout  = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Transport is the raw report source. ReadReport fills p with at most one
// report and returns the number of bytes read. A read timeout is reported
// as (0, nil) and is retried by the assembler; any returned error is a
// hard fault that ends acquisition.
type Transport interface {
	ReadReport(p []byte, timeout time.Duration) (int, error)
}

type Config struct {
	ReadTimeout  time.Duration
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	return c
}

// Monitor owns the lifecycle of a single background acquisition worker.
type Monitor struct {
	transport Transport
	cfg       Config

	observers registry

	// transportMu serializes transport access for one full assembly
	// cycle, so a snapshot is never built from interleaved readers.
	transportMu sync.Mutex

	// running is polled by the worker at the top of each cycle; it is
	// never checked mid-read, which bounds cancellation latency at one
	// in-flight cycle plus one read timeout.
	running atomic.Bool

	mu   sync.Mutex
	done chan struct{}
	err  error
}

func New(transport Transport, cfg Config) (*Monitor, error) {
	if transport == nil {
		return nil, errors.New().New(ErrNilTransport)
	}

	return &Monitor{
		transport: transport,
		cfg:       cfg.withDefaults(),
	}, nil
}

// Register adds an observer. Observers cannot be removed; one registered
// while the worker is running receives snapshots from the next completed
// cycle onward.
func (m *Monitor) Register(o Observer) {
	m.observers.add(o)
}

// Start launches the background worker and returns without waiting for
// the first snapshot. Starting a monitor whose worker is still live
// (running or terminated but not yet stopped) is an error.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done != nil {
		return errors.New().New(ErrAlreadyStarted)
	}

	m.err = nil
	m.running.Store(true)
	done := make(chan struct{})
	m.done = done
	go m.run(done)

	return nil
}

// Stop requests the worker to exit at its next loop-top check and blocks
// until it has fully exited, then clears the worker handle. Stopping a
// monitor that was never started is a no-op. The worker may stay blocked
// in a device read for up to ReadTimeout, which bounds how long Stop can
// take.
func (m *Monitor) Stop() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return
	}

	m.running.Store(false)
	<-done

	m.mu.Lock()
	if m.done == done {
		m.done = nil
	}
	m.mu.Unlock()
}

// Done reports worker termination: the returned channel is closed once
// the current worker has exited, or immediately when none was started.
// It lets callers notice an acquisition failure instead of inferring it
// from observers falling silent.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}

	return m.done
}

// Err returns the error that terminated the last worker, or nil after a
// clean stop.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.err
}

func (m *Monitor) run(done chan struct{}) {
	defer close(done)

	for m.running.Load() {
		m.transportMu.Lock()
		snapshot, err := m.assemble()
		m.transportMu.Unlock()
		if err != nil {
			logger.Error().Err(err).Msg("Acquisition failed, stopping worker")
			m.mu.Lock()
			m.err = err
			m.mu.Unlock()
			m.running.Store(false)
			return
		}

		m.observers.dispatch(snapshot)
		time.Sleep(m.cfg.PollInterval)
	}
}

// assemble reads reports until every field has been seen at least once,
// then stamps the completed snapshot with the current time. Timeouts and
// short reads are retried; a hard transport fault aborts the cycle.
func (m *Monitor) assemble() (Snapshot, error) {
	var buf [reportSize]byte
	var r reading

	for !r.complete() {
		n, err := m.transport.ReadReport(buf[:], m.cfg.ReadTimeout)
		if err != nil {
			return Snapshot{}, errors.New().Wrap(ErrAcquisition, err)
		}
		if n < minReportSize {
			continue
		}
		r.apply(decodeReport(buf[:n]))
	}

	return r.snapshot(time.Now()), nil
}
