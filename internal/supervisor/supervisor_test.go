package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") == "1" {
		code, _ := strconv.Atoi(os.Getenv("HELPER_EXIT_CODE"))
		os.Exit(code)
	}
	goleak.VerifyTestMain(m)
}

// fakeClock fires every timer immediately and records the delays asked for.
type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *fakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// fakeProcess exits with err right away, or blocks until signalled when
// block is set.
type fakeProcess struct {
	pid     int
	err     error
	block   bool
	signals chan os.Signal
	stop    chan struct{}
	once    sync.Once
}

func newFakeProcess(pid int, err error, block bool) *fakeProcess {
	return &fakeProcess{
		pid:     pid,
		err:     err,
		block:   block,
		signals: make(chan os.Signal, 4),
		stop:    make(chan struct{}),
	}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() error {
	if p.block {
		<-p.stop
		return errors.New("signal: terminated")
	}
	return p.err
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.signals <- sig
	p.once.Do(func() { close(p.stop) })
	return nil
}

func TestBackoff(t *testing.T) {
	p := DefaultPolicy()
	var got []time.Duration
	for n := 1; n <= 8; n++ {
		got = append(got, p.Backoff(n))
	}
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second,
	}, got)
	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, time.Minute, p.Backoff(1000))
}

func TestTracker_BackoffThenCooldown(t *testing.T) {
	tr := NewTracker(DefaultPolicy())
	assert.Equal(t, Running, tr.State())

	for i, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second} {
		d, ok := tr.Crashed()
		require.True(t, ok)
		assert.Equal(t, want, d)
		assert.Equal(t, RestartScheduled, tr.State())
		assert.Equal(t, i+1, tr.RestartCount())
		tr.Respawned()
		assert.Equal(t, Running, tr.State())
	}

	d, ok := tr.Crashed()
	require.True(t, ok)
	assert.Equal(t, 5*time.Minute, d)
	assert.Equal(t, Cooldown, tr.State())
	assert.True(t, tr.CooldownActive())

	// Exits during the cooldown schedule nothing.
	_, ok = tr.Crashed()
	assert.False(t, ok)
	assert.Equal(t, 6, tr.RestartCount())

	tr.Respawned()
	assert.Equal(t, 0, tr.RestartCount())
	assert.False(t, tr.CooldownActive())

	d, ok = tr.Crashed()
	require.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestRun_RestartSequence(t *testing.T) {
	clock := &fakeClock{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var last *fakeProcess
	spawned := 0
	spawn := func() (Process, error) {
		spawned++
		if spawned == 8 {
			last = newFakeProcess(spawned, nil, true)
			cancel()
			return last, nil
		}
		return newFakeProcess(spawned, errors.New("exit status 1"), false), nil
	}

	s := New(spawn, DefaultPolicy(), clock, zerolog.Nop())
	require.NoError(t, s.Run(ctx, nil))

	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		5 * time.Minute,
		1 * time.Second,
	}, clock.Delays())
	assert.Equal(t, 8, spawned)
	assert.Equal(t, syscall.SIGTERM, <-last.signals)
	assert.Equal(t, Running, s.Tracker().State())
}

func TestRun_SpawnErrorCountsAsCrash(t *testing.T) {
	clock := &fakeClock{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spawned := 0
	spawn := func() (Process, error) {
		spawned++
		if spawned == 3 {
			cancel()
			return newFakeProcess(spawned, nil, true), nil
		}
		return nil, errors.New("executable not found")
	}

	require.NoError(t, New(spawn, DefaultPolicy(), clock, zerolog.Nop()).Run(ctx, nil))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Delays())
}

func TestRun_CleanExitIsNotRestarted(t *testing.T) {
	clock := &fakeClock{}
	sigs := make(chan os.Signal, 1)

	var spawned atomic.Int32
	spawn := func() (Process, error) {
		return newFakeProcess(int(spawned.Add(1)), nil, false), nil
	}

	s := New(spawn, DefaultPolicy(), clock, zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), sigs) }()

	require.Eventually(t, func() bool { return spawned.Load() == 1 }, time.Second, time.Millisecond)
	sigs <- syscall.SIGTERM
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), spawned.Load())
	assert.Empty(t, clock.Delays())
	assert.Equal(t, Stopped, s.Tracker().State())
}

func TestRun_ForwardsSignal(t *testing.T) {
	for _, sig := range []os.Signal{syscall.SIGINT, syscall.SIGTERM} {
		t.Run(fmt.Sprint(sig), func(t *testing.T) {
			proc := newFakeProcess(42, nil, true)
			sigs := make(chan os.Signal, 1)
			sigs <- sig

			s := New(func() (Process, error) { return proc, nil }, DefaultPolicy(), &fakeClock{}, zerolog.Nop())
			require.NoError(t, s.Run(context.Background(), sigs))
			assert.Equal(t, sig, <-proc.signals)
		})
	}
}

func TestRun_SignalDuringBackoff(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	// A clock that never fires, so the supervisor sits in RestartScheduled.
	clock := clockFunc(func(time.Duration) <-chan time.Time {
		sigs <- syscall.SIGINT
		return make(chan time.Time)
	})

	spawned := 0
	spawn := func() (Process, error) {
		spawned++
		return newFakeProcess(spawned, errors.New("exit status 2"), false), nil
	}

	s := New(spawn, DefaultPolicy(), clock, zerolog.Nop())
	require.NoError(t, s.Run(context.Background(), sigs))
	assert.Equal(t, 1, spawned)
	assert.Equal(t, RestartScheduled, s.Tracker().State())
}

type clockFunc func(time.Duration) <-chan time.Time

func (f clockFunc) After(d time.Duration) <-chan time.Time { return f(d) }

func TestCommand_ExitCodes(t *testing.T) {
	run := func(code int) error {
		proc, err := Command{
			Path: os.Args[0],
			Args: []string{"-test.run=^$"},
			Env:  append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_EXIT_CODE="+strconv.Itoa(code)),
		}.Spawn()
		require.NoError(t, err)
		assert.Positive(t, proc.Pid())
		return proc.Wait()
	}

	assert.NoError(t, run(0))
	err := run(3)
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
}

func TestCommand_SpawnError(t *testing.T) {
	_, err := Command{Path: "/nonexistent/autoresponder"}.Spawn()
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "cooldown", Cooldown.String())
	assert.Equal(t, "unknown", State(9).String())
}
