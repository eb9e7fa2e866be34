package sampler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/moodcam/capture"
	"github.com/maastricht-university/moodcam/display"
	"github.com/maastricht-university/moodcam/emotion"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	mu       sync.Mutex
	acqErr   error
	acquired bool
	released int
	seq      int64
	at       time.Time
}

func (f *fakeSource) Acquire(context.Context, capture.Constraints) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acqErr != nil {
		return f.acqErr
	}
	f.acquired = true
	return nil
}

func (f *fakeSource) Frame(context.Context) (capture.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.acquired {
		return capture.Frame{}, capture.ErrNotAcquired
	}
	f.seq++
	return capture.Frame{Seq: f.seq, Data: []byte("frame"), CapturedAt: f.at}, nil
}

func (f *fakeSource) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = false
	f.released++
	return nil
}

type result struct {
	vec emotion.Vector
	err error
}

// fakeInference replays results in order and repeats the last one.
type fakeInference struct {
	mu      sync.Mutex
	loadErr error
	loads   int
	results []result
	calls   int
}

func (f *fakeInference) Load(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.loadErr
}

func (f *fakeInference) Analyze(context.Context, capture.Frame) (emotion.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i].vec, f.results[i].err
}

func (f *fakeInference) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu       sync.Mutex
	startErr error
	saveErrs []error
	block    chan struct{}
	saves    []emotion.Dominant
	ended    map[string]int
	running  int
	peak     int
}

func (f *fakeStore) StartSession(context.Context) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return "42", nil
}

func (f *fakeStore) EndSession(_ context.Context, id string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended == nil {
		f.ended = map[string]int{}
	}
	f.ended[id] = count
	return nil
}

func (f *fakeStore) SaveMood(_ context.Context, d emotion.Dominant) error {
	f.mu.Lock()
	f.running++
	if f.running > f.peak {
		f.peak = f.running
	}
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running--
	f.saves = append(f.saves, d)
	if len(f.saveErrs) > 0 {
		err := f.saveErrs[0]
		f.saveErrs = f.saveErrs[1:]
		return err
	}
	return nil
}

func (f *fakeStore) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *fakeStore) Saves() []emotion.Dominant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emotion.Dominant(nil), f.saves...)
}

type recorder struct {
	mu      sync.Mutex
	updates []display.Update
}

func (r *recorder) add(u display.Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recorder) all() []display.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]display.Update(nil), r.updates...)
}

func (r *recorder) last() display.Update {
	all := r.all()
	return all[len(all)-1]
}

var happyVec = emotion.Vector{emotion.Happy: 0.8, emotion.Neutral: 0.15, emotion.Sad: 0.05}

type fixture struct {
	s     *Sampler
	clock *fakeClock
	inf   *fakeInference
	store *fakeStore
	src   *fakeSource
	rec   *recorder
	logs  *test.Hook
}

func newFixture(t *testing.T, cfg Config, store *fakeStore, results ...result) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f := &fixture{
		logs:  hook,
		clock: &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		inf:   &fakeInference{results: results},
		store: store,
		src:   &fakeSource{},
		rec:   &recorder{},
	}
	var st Store
	if store != nil {
		st = store
	}
	f.s = New(cfg, f.inf, st, WithClock(f.clock.Now), WithLogger(logger))
	f.s.OnDisplayUpdate(f.rec.add)
	return f
}

// runCycle drives one cycle by hand and waits for any save it started.
func (f *fixture) runCycle() {
	f.s.cycle(context.Background(), f.src)
	f.waitSaves()
}

func (f *fixture) waitSaves() {
	if ch := f.s.state.pending(); ch != nil {
		<-ch
	}
}

func (f *fixture) logged(msg string) bool {
	for _, e := range f.logs.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

func (f *fixture) withSession(t *testing.T) {
	t.Helper()
	require.NoError(t, f.src.Acquire(context.Background(), capture.DefaultConstraints))
	f.s.state.begin("42")
}

func TestCycleDisplaysAndPersistsDominant(t *testing.T) {
	f := newFixture(t, Config{}, &fakeStore{}, result{vec: happyVec})
	f.withSession(t)

	f.runCycle()

	u := f.rec.last()
	require.NotNil(t, u.Dominant)
	assert.Equal(t, emotion.Happy, u.Dominant.Label)
	assert.Equal(t, "Confidence: 80%", u.Dominant.ConfidenceText)
	assert.Equal(t, 80, u.Bars[emotion.Happy].WidthPercent)

	assert.Equal(t, []emotion.Dominant{{Label: emotion.Happy, Confidence: 0.8}}, f.store.Saves())
	v := f.s.State()
	assert.Equal(t, 1, v.SamplesPersisted)
	assert.Equal(t, f.clock.Now(), v.LastPersist)
	assert.Equal(t, 1, v.Counters.Detections)
}

func TestThrottleWindow(t *testing.T) {
	f := newFixture(t, Config{}, &fakeStore{}, result{vec: happyVec})
	f.withSession(t)
	t0 := f.clock.Now()

	f.runCycle()
	f.clock.Advance(200 * time.Millisecond)
	f.runCycle()
	assert.Len(t, f.store.Saves(), 1)

	f.clock.Advance(4799 * time.Millisecond)
	f.runCycle()
	assert.Len(t, f.store.Saves(), 1)

	f.clock.Advance(time.Millisecond)
	f.runCycle()
	assert.Len(t, f.store.Saves(), 2)

	v := f.s.State()
	assert.Equal(t, 2, v.SamplesPersisted)
	assert.Equal(t, t0.Add(5*time.Second), v.LastPersist)
	assert.Equal(t, 4, v.Counters.Detections)
}

func TestRejectedSaveIsRetriedNextCycle(t *testing.T) {
	store := &fakeStore{saveErrs: []error{errors.New("mood save 500")}}
	f := newFixture(t, Config{}, store, result{vec: happyVec})
	f.withSession(t)

	f.runCycle()
	v := f.s.State()
	assert.Equal(t, 0, v.SamplesPersisted)
	assert.True(t, v.LastPersist.IsZero())
	assert.Equal(t, 1, v.Counters.PersistFailures)
	assert.False(t, v.Persisting)

	f.clock.Advance(200 * time.Millisecond)
	f.runCycle()
	assert.Len(t, store.Saves(), 2)
	v = f.s.State()
	assert.Equal(t, 1, v.SamplesPersisted)
	assert.Equal(t, f.clock.Now(), v.LastPersist)
}

func TestNoSubjectSkipsBarsAndPersistence(t *testing.T) {
	f := newFixture(t, Config{}, &fakeStore{}, result{err: emotion.ErrNoSubject})
	f.withSession(t)

	f.runCycle()

	u := f.rec.last()
	assert.Equal(t, display.Warning, u.Status.Class)
	assert.Equal(t, "No face detected", u.Status.Text)
	assert.Nil(t, u.Dominant)
	assert.Empty(t, u.Bars)
	assert.Empty(t, f.store.Saves())
	assert.Equal(t, 1, f.s.State().Counters.NoSubject)
}

func TestEmptyVectorCountsAsNoSubject(t *testing.T) {
	f := newFixture(t, Config{}, &fakeStore{}, result{vec: emotion.Vector{}})
	f.withSession(t)

	f.runCycle()
	assert.Equal(t, "No face detected", f.rec.last().Status.Text)
	assert.Empty(t, f.store.Saves())
}

func TestInferenceErrorIsNonFatal(t *testing.T) {
	f := newFixture(t, Config{}, &fakeStore{},
		result{err: errors.New("detect 502 Bad Gateway")},
		result{vec: happyVec},
	)
	f.withSession(t)

	f.runCycle()
	assert.Empty(t, f.rec.all())
	assert.Equal(t, 1, f.s.State().Counters.InferenceErrors)

	f.runCycle()
	assert.Len(t, f.store.Saves(), 1)
}

func TestNoSessionMeansNoPersistence(t *testing.T) {
	f := newFixture(t, Config{}, &fakeStore{}, result{vec: happyVec})
	require.NoError(t, f.src.Acquire(context.Background(), capture.DefaultConstraints))
	f.s.state.begin("")

	f.runCycle()
	assert.NotNil(t, f.rec.last().Dominant)
	assert.Empty(t, f.store.Saves())
}

func TestSingleSaveInFlight(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	f := newFixture(t, Config{}, store, result{vec: happyVec})
	f.withSession(t)
	ctx := context.Background()

	f.s.cycle(ctx, f.src)
	require.Eventually(t, func() bool { return f.s.State().Persisting }, time.Second, time.Millisecond)

	// window elapsed but the first save has not settled
	f.clock.Advance(6 * time.Second)
	f.s.cycle(ctx, f.src)

	close(store.block)
	f.waitSaves()
	assert.Len(t, store.Saves(), 1)
	assert.Equal(t, 1, f.s.State().SamplesPersisted)
}

func TestStateLastPersistNeverMovesBack(t *testing.T) {
	var s State
	s.begin("42")
	t10 := time.Unix(10, 0)

	gen, ok := s.beginPersist(t10, 5*time.Second)
	require.True(t, ok)
	s.endPersist(gen, t10, true)
	s.endPersist(gen, time.Unix(5, 0), true)
	assert.Equal(t, t10, s.View().LastPersist)

	_, ok = s.beginPersist(t10.Add(time.Second), 5*time.Second)
	assert.False(t, ok)
}

func TestStaleSaveResultIgnoredAfterTeardown(t *testing.T) {
	var s State
	s.begin("42")
	gen, ok := s.beginPersist(time.Unix(10, 0), time.Second)
	require.True(t, ok)

	s.teardown()
	s.begin("43")
	s.endPersist(gen, time.Unix(10, 0), true)

	v := s.View()
	assert.Equal(t, 0, v.SamplesPersisted)
	assert.True(t, v.LastPersist.IsZero())
}

func TestStartStopLifecycle(t *testing.T) {
	reports := t.TempDir()
	store := &fakeStore{}
	f := newFixture(t, Config{FrameInterval: time.Millisecond, ReportDir: reports}, store, result{vec: happyVec})
	ctx := context.Background()

	require.NoError(t, f.s.Start(ctx, f.src))
	assert.True(t, f.s.Active())
	assert.ErrorIs(t, f.s.Start(ctx, f.src), ErrActive)

	require.Eventually(t, func() bool { return f.s.State().SamplesPersisted == 1 }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return f.inf.Calls() > 3 }, 2*time.Second, time.Millisecond)

	require.NoError(t, f.s.Stop(ctx))
	assert.False(t, f.s.Active())
	assert.Equal(t, map[string]int{"42": 1}, store.ended)
	assert.Equal(t, 1, f.src.released)
	assert.True(t, f.rec.last().Reset)

	calls := f.inf.Calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, f.inf.Calls())

	matches, err := filepath.Glob(filepath.Join(reports, "run_*", "report.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	b, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var r Report
	require.NoError(t, json.Unmarshal(b, &r))
	assert.Equal(t, "42", r.SessionID)
	assert.Equal(t, 1, r.SamplesPersisted)
	assert.Equal(t, calls, r.Cycles)
	assert.NotEmpty(t, r.RunID)

	require.NoError(t, f.s.Stop(ctx))
	assert.Equal(t, "", f.s.State().SessionID)
}

func TestStartWithoutLoginStillDetects(t *testing.T) {
	f := newFixture(t, Config{FrameInterval: time.Millisecond}, nil, result{vec: happyVec})
	ctx := context.Background()

	require.NoError(t, f.s.Start(ctx, f.src))
	require.Eventually(t, func() bool { return f.s.State().Counters.Detections > 0 }, 2*time.Second, time.Millisecond)
	require.NoError(t, f.s.Stop(ctx))
	assert.Equal(t, 0, f.s.State().SamplesPersisted)
}

func TestSessionStartFailureIsBestEffort(t *testing.T) {
	store := &fakeStore{startErr: errors.New("session start 500")}
	f := newFixture(t, Config{FrameInterval: time.Millisecond}, store, result{vec: happyVec})
	ctx := context.Background()

	require.NoError(t, f.s.Start(ctx, f.src))
	require.Eventually(t, func() bool { return f.s.State().Counters.Detections > 0 }, 2*time.Second, time.Millisecond)
	require.NoError(t, f.s.Stop(ctx))
	assert.Empty(t, store.Saves())
	assert.Empty(t, store.ended)
}

func TestStartFailsWithoutVideoSource(t *testing.T) {
	f := newFixture(t, Config{}, &fakeStore{}, result{vec: happyVec})
	f.src.acqErr = errors.New("permission denied")

	err := f.s.Start(context.Background(), f.src)
	require.Error(t, err)
	assert.False(t, f.s.Active())
	assert.Equal(t, 0, f.inf.loads)
	assert.Equal(t, display.Error, f.rec.last().Status.Class)
	assert.Equal(t, "Camera access denied or unavailable", f.rec.last().Status.Text)
}

func TestModelLoadIsLazyAndRetried(t *testing.T) {
	f := newFixture(t, Config{FrameInterval: time.Millisecond}, &fakeStore{}, result{vec: happyVec})
	f.inf.loadErr = errors.New("model load 503")
	ctx := context.Background()

	require.Error(t, f.s.Start(ctx, f.src))
	assert.False(t, f.s.Active())
	assert.Equal(t, 1, f.src.released)
	assert.Equal(t, display.Error, f.rec.last().Status.Class)

	f.inf.loadErr = nil
	require.NoError(t, f.s.Start(ctx, f.src))
	require.NoError(t, f.s.Stop(ctx))
	require.NoError(t, f.s.Start(ctx, f.src))
	require.NoError(t, f.s.Stop(ctx))
	assert.Equal(t, 2, f.inf.loads)
}

func TestCycleAfterCancelIsNoop(t *testing.T) {
	f := newFixture(t, Config{}, &fakeStore{}, result{vec: happyVec})
	f.withSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.s.cycle(ctx, f.src)
	assert.Equal(t, 0, f.inf.Calls())
	assert.Equal(t, 0, f.s.State().Counters.Cycles)
}

func TestRestartAfterStopTimeoutKeepsOneSaveInFlight(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	f := newFixture(t, Config{FrameInterval: time.Millisecond}, store, result{vec: happyVec})
	ctx := context.Background()

	require.NoError(t, f.s.Start(ctx, f.src))
	require.Eventually(t, func() bool { return f.s.State().Persisting }, 2*time.Second, time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.NoError(t, f.s.Stop(stopCtx))
	assert.True(t, f.logged("stopped before pending save settled"))
	assert.True(t, f.s.State().Persisting)

	// the first run's save still holds the slot
	require.NoError(t, f.s.Start(ctx, f.src))
	f.clock.Advance(10 * time.Second)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, store.Peak())

	close(store.block)
	require.Eventually(t, func() bool { return f.s.State().SamplesPersisted == 1 }, 2*time.Second, time.Millisecond)
	require.NoError(t, f.s.Stop(ctx))
	assert.Equal(t, 1, store.Peak())
	assert.Equal(t, map[string]int{"42": 1}, store.ended)
}

func TestListenerMayCallBackIntoSampler(t *testing.T) {
	f := newFixture(t, Config{FrameInterval: time.Millisecond}, &fakeStore{}, result{vec: happyVec})
	var seen []bool
	var mu sync.Mutex
	f.s.OnDisplayUpdate(func(u display.Update) {
		mu.Lock()
		seen = append(seen, f.s.Active())
		mu.Unlock()
		if u.Status.Class == display.Error {
			_ = f.s.Stop(context.Background())
		}
	})

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ctx := context.Background()
		f.src.acqErr = errors.New("permission denied")
		assert.Error(t, f.s.Start(ctx, f.src))

		f.src.acqErr = nil
		assert.NoError(t, f.s.Start(ctx, f.src))
		assert.NoError(t, f.s.Stop(ctx))
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Start/Stop blocked on a listener calling back into the sampler")
	}
	assert.False(t, f.s.Active())
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, true)
}

func TestStopWithoutPendingSaveDoesNotWarn(t *testing.T) {
	f := newFixture(t, Config{FrameInterval: time.Millisecond}, nil, result{vec: happyVec})
	ctx := context.Background()
	require.NoError(t, f.s.Start(ctx, f.src))

	expired, cancel := context.WithCancel(ctx)
	cancel()
	for i := 0; i < 20; i++ {
		require.NoError(t, f.s.Stop(expired))
		require.NoError(t, f.s.Start(ctx, f.src))
	}
	require.NoError(t, f.s.Stop(expired))
	assert.False(t, f.logged("stopped before pending save settled"))
}

func TestDetectionFailureLogsFrameAge(t *testing.T) {
	f := newFixture(t, Config{}, &fakeStore{}, result{err: errors.New("detect 502 Bad Gateway")})
	f.withSession(t)
	f.src.at = f.clock.Now()
	f.clock.Advance(250 * time.Millisecond)

	f.runCycle()

	e := f.logs.LastEntry()
	require.NotNil(t, e)
	assert.Equal(t, "detection failed", e.Message)
	assert.Equal(t, 250*time.Millisecond, e.Data["frame_age"])
	assert.Equal(t, int64(1), e.Data["frame"])
}
