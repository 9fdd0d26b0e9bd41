package monitor

import (
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/airco2ctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptTransport replays a fixed sequence of reads. A zero-length entry
// behaves like a read timeout; once the script is exhausted it returns
// finalErr, or times out forever when finalErr is nil.
type scriptTransport struct {
	mu       sync.Mutex
	script   [][]byte
	finalErr error
	pos      int
}

func (t *scriptTransport) ReadReport(p []byte, _ time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pos >= len(t.script) {
		if t.finalErr != nil {
			return 0, t.finalErr
		}
		return 0, nil
	}

	n := copy(p, t.script[t.pos])
	t.pos++

	return n, nil
}

// cycleTransport endlessly replays complete report cycles, optionally
// failing hard after a number of reads.
type cycleTransport struct {
	mu        sync.Mutex
	reads     int
	failAfter int
	failErr   error
}

func (t *cycleTransport) ReadReport(p []byte, _ time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failAfter > 0 && t.reads >= t.failAfter {
		return 0, t.failErr
	}

	cycle := [][]byte{
		rawReport(TagCO2, 600),
		rawReport(TagTemperature, 4881),
		rawReport(TagHumidity, 5000),
	}
	n := copy(p, cycle[t.reads%len(cycle)])
	t.reads++

	return n, nil
}

func testConfig() Config {
	return Config{
		ReadTimeout:  100 * time.Millisecond,
		PollInterval: time.Millisecond,
	}
}

func waitSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a snapshot")
		return Snapshot{}
	}
}

func TestNewRejectsNilTransport(t *testing.T) {
	_, err := New(nil, Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrNilTransport))
}

func TestAssembleAnyOrder(t *testing.T) {
	forward := &scriptTransport{script: [][]byte{
		rawReport(TagCO2, 600),
		rawReport(TagTemperature, 4881),
		rawReport(TagHumidity, 5000),
	}}
	reverse := &scriptTransport{script: [][]byte{
		rawReport(TagHumidity, 5000),
		rawReport(TagTemperature, 4881),
		rawReport(TagCO2, 600),
	}}

	mForward, err := New(forward, testConfig())
	require.NoError(t, err)
	mReverse, err := New(reverse, testConfig())
	require.NoError(t, err)

	a, err := mForward.assemble()
	require.NoError(t, err)
	b, err := mReverse.assemble()
	require.NoError(t, err)

	assert.Equal(t, uint16(600), a.CO2PPM)
	assert.InDelta(t, 31.89, a.Temperature, 1e-9)
	assert.InDelta(t, 50.00, a.Humidity, 1e-9)

	assert.Equal(t, a.CO2PPM, b.CO2PPM)
	assert.Equal(t, a.Temperature, b.Temperature)
	assert.Equal(t, a.Humidity, b.Humidity)
	assert.False(t, a.Timestamp.IsZero())
}

func TestAssembleOverwritesRepeatedTag(t *testing.T) {
	transport := &scriptTransport{script: [][]byte{
		rawReport(TagCO2, 400),
		rawReport(TagCO2, 600),
		rawReport(TagTemperature, 4881),
		rawReport(TagHumidity, 5000),
	}}

	m, err := New(transport, testConfig())
	require.NoError(t, err)

	s, err := m.assemble()
	require.NoError(t, err)
	assert.Equal(t, uint16(600), s.CO2PPM, "latest value for a repeated tag wins")
}

func TestAssembleSkipsTimeoutsAndUnknownTags(t *testing.T) {
	transport := &scriptTransport{script: [][]byte{
		{}, // timeout
		rawReport(0x99, 1),
		rawReport(TagCO2, 600),
		{}, // timeout
		rawReport(TagTemperature, 4881),
		rawReport(TagHumidity, 5000),
	}}

	m, err := New(transport, testConfig())
	require.NoError(t, err)

	s, err := m.assemble()
	require.NoError(t, err)
	assert.Equal(t, uint16(600), s.CO2PPM)
}

func TestAssembleAbortsOnHardError(t *testing.T) {
	readErr := errors.New().WithMessage(errors.ErrReadDevice, "device detached")
	transport := &scriptTransport{
		script:   [][]byte{rawReport(TagCO2, 600)},
		finalErr: readErr,
	}

	m, err := New(transport, testConfig())
	require.NoError(t, err)

	_, err = m.assemble()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrAcquisition))
	assert.Contains(t, err.Error(), "device detached")
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	m, err := New(&cycleTransport{}, testConfig())
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		m.Stop()
		m.Stop()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Stop on a never-started monitor did not return promptly")
	}
	assert.NoError(t, m.Err())
}

func TestStartStopLifecycles(t *testing.T) {
	m, err := New(&cycleTransport{}, testConfig())
	require.NoError(t, err)

	snapshots := make(chan Snapshot, 64)
	var count int
	var mu sync.Mutex
	m.Register(ObserverFunc(func(s Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
		select {
		case snapshots <- s:
		default:
		}
	}))

	for lifetime := 0; lifetime < 2; lifetime++ {
		require.NoError(t, m.Start())
		s := waitSnapshot(t, snapshots)
		assert.Equal(t, uint16(600), s.CO2PPM)
		m.Stop()

		// No dispatch may happen once Stop has returned.
		mu.Lock()
		settled := count
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		assert.Equal(t, settled, count, "observed a dispatch after Stop returned")
		mu.Unlock()
	}
}

func TestStartWhileRunning(t *testing.T) {
	m, err := New(&cycleTransport{}, testConfig())
	require.NoError(t, err)

	require.NoError(t, m.Start())
	defer m.Stop()

	err = m.Start()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrAlreadyStarted))
}

func TestWorkerExitsOnTransportFailure(t *testing.T) {
	readErr := errors.New().WithMessage(errors.ErrReadDevice, "unplugged")
	transport := &cycleTransport{failAfter: 4, failErr: readErr}

	m, err := New(transport, testConfig())
	require.NoError(t, err)

	var dispatched int
	var mu sync.Mutex
	m.Register(ObserverFunc(func(Snapshot) {
		mu.Lock()
		dispatched++
		mu.Unlock()
	}))

	require.NoError(t, m.Start())

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate after a hard transport error")
	}

	require.Error(t, m.Err())
	assert.True(t, errors.IsCode(m.Err(), ErrAcquisition))

	mu.Lock()
	assert.Equal(t, 1, dispatched, "only the completed cycle is dispatched")
	mu.Unlock()

	// Stop clears the worker handle so the monitor can be restarted.
	m.Stop()
	transport.mu.Lock()
	transport.failAfter = 0
	transport.failErr = nil
	transport.mu.Unlock()
	require.NoError(t, m.Start())
	m.Stop()
}

func TestDoneClosedWhenIdle(t *testing.T) {
	m, err := New(&cycleTransport{}, testConfig())
	require.NoError(t, err)

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("Done should report immediately for an idle monitor")
	}
}
