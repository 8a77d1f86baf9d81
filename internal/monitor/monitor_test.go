package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ibraheemcisse/service-monitoring-script/internal/alerts"
	"github.com/ibraheemcisse/service-monitoring-script/internal/config"
	"github.com/ibraheemcisse/service-monitoring-script/internal/sysinfo"
)

type captureNotifier struct {
	events []alerts.Event
}

func (c *captureNotifier) Notify(_ context.Context, e alerts.Event) error {
	c.events = append(c.events, e)
	return nil
}

func (c *captureNotifier) firing() []alerts.Event {
	var out []alerts.Event
	for _, e := range c.events {
		if e.Status == alerts.StatusFiring {
			out = append(out, e)
		}
	}
	return out
}

// spyStore records which keys the evaluator touched, on top of a working
// in-memory store.
type spyStore struct {
	inner      *alerts.MemoryStore
	shouldFire []alerts.Key
	recorded   []alerts.Key
	cleared    []alerts.Key
}

func newSpyStore() *spyStore {
	return &spyStore{inner: alerts.NewMemoryStore()}
}

func (s *spyStore) ShouldFire(key alerts.Key, cooldown time.Duration, now time.Time) (bool, error) {
	s.shouldFire = append(s.shouldFire, key)
	return s.inner.ShouldFire(key, cooldown, now)
}

func (s *spyStore) RecordFired(key alerts.Key, now time.Time) error {
	s.recorded = append(s.recorded, key)
	return s.inner.RecordFired(key, now)
}

func (s *spyStore) Clear(key alerts.Key) (bool, error) {
	s.cleared = append(s.cleared, key)
	return s.inner.Clear(key)
}

func (s *spyStore) touched(cond alerts.Condition) bool {
	for _, lists := range [][]alerts.Key{s.shouldFire, s.recorded, s.cleared} {
		for _, k := range lists {
			if k.Condition == cond {
				return true
			}
		}
	}
	return false
}

type fakeStatus struct {
	active    bool
	activeErr error
	pid       int32
	startedAt time.Time
	pidErr    error
}

func (f *fakeStatus) IsActive(context.Context, string) (bool, error) {
	return f.active, f.activeErr
}

func (f *fakeStatus) MainPID(context.Context, string) (int32, time.Time, error) {
	return f.pid, f.startedAt, f.pidErr
}

type fakeResources struct {
	usage sysinfo.Usage
	err   error
}

func (f *fakeResources) Sample(context.Context, int32) (sysinfo.Usage, error) {
	return f.usage, f.err
}

type fakeLogs struct {
	count    int
	countErr error
	tail     []string
}

func (f *fakeLogs) CountErrors(context.Context, string, time.Duration, string) (int, error) {
	return f.count, f.countErr
}

func (f *fakeLogs) Tail(context.Context, string, int) ([]string, error) {
	return f.tail, nil
}

type fakeProber struct {
	err error
}

func (f *fakeProber) Check(context.Context, string) error {
	return f.err
}

type fixture struct {
	monitor  *Monitor
	store    *spyStore
	notifier *captureNotifier
	status   *fakeStatus
	res      *fakeResources
	logs     *fakeLogs
	prober   *fakeProber
	now      time.Time
}

func newFixture(t *testing.T, services []config.ServiceConfig) *fixture {
	t.Helper()

	cfg := &config.Config{Services: services}
	errThreshold := 10
	cfg.Thresholds = config.ThresholdsConfig{CPUPercent: 80, MemoryPercent: 80, ErrorCount: &errThreshold}
	cfg.Advanced = config.AdvancedConfig{
		ProbeAttempts:  2,
		ProbeBackoff:   "0s",
		ServiceTimeout: "30s",
		HTTPTimeout:    "1s",
		LogWindow:      "1h",
		ErrorMarker:    "error",
		ExcerptLines:   2,
	}

	f := &fixture{
		store:    newSpyStore(),
		notifier: &captureNotifier{},
		status:   &fakeStatus{active: true, pid: 42},
		res:      &fakeResources{usage: sysinfo.Usage{CPUPercent: 5, MemoryPercent: 5}},
		logs:     &fakeLogs{count: 0},
		prober:   &fakeProber{},
		now:      time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
	}

	mgr := alerts.NewManager(f.store, f.notifier, time.Hour)
	f.monitor = New(cfg, f.status, f.res, f.logs, f.prober, mgr)
	f.monitor.now = func() time.Time { return f.now }
	return f
}

func web() []config.ServiceConfig {
	return []config.ServiceConfig{{Name: "web"}}
}

func TestRun_DownFires_ThenRecoveryClears(t *testing.T) {
	f := newFixture(t, web())
	f.status.active = false

	report := f.monitor.RunOnce(context.Background())

	firing := f.notifier.firing()
	if len(firing) != 1 {
		t.Fatalf("expected 1 firing event, got %d", len(firing))
	}
	if firing[0].Key != (alerts.Key{Service: "web", Condition: alerts.ConditionDown}) {
		t.Fatalf("unexpected key %s", firing[0].Key)
	}
	if report.DownCount() != 1 {
		t.Fatalf("expected 1 down service, got %d", report.DownCount())
	}

	// Next run the service is back. The down record must be removed and a
	// recovery notice sent.
	f.status.active = true
	f.now = f.now.Add(5 * time.Minute)
	f.monitor.RunOnce(context.Background())

	var resolved int
	for _, e := range f.notifier.events {
		if e.Status == alerts.StatusResolved && e.Key.Condition == alerts.ConditionDown {
			resolved++
		}
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved down event, got %d", resolved)
	}

	ok, _ := f.store.inner.ShouldFire(alerts.Key{Service: "web", Condition: alerts.ConditionDown}, time.Hour, f.now)
	if !ok {
		t.Fatal("down record still present after recovery")
	}
}

func TestRun_DownAlertSuppressedWithinCooldown(t *testing.T) {
	f := newFixture(t, web())
	f.status.active = false

	f.monitor.RunOnce(context.Background())
	f.now = f.now.Add(10 * time.Minute)
	f.monitor.RunOnce(context.Background())

	if got := len(f.notifier.firing()); got != 1 {
		t.Fatalf("expected 1 firing event across both runs, got %d", got)
	}

	// Past the cooldown the alert repeats.
	f.now = f.now.Add(time.Hour)
	f.monitor.RunOnce(context.Background())
	if got := len(f.notifier.firing()); got != 2 {
		t.Fatalf("expected re-fire after cooldown, got %d firing events", got)
	}
}

func TestRun_CPUFiresOncePerCooldown(t *testing.T) {
	f := newFixture(t, web())
	f.res.usage = sysinfo.Usage{CPUPercent: 85, MemoryPercent: 10}

	f.monitor.RunOnce(context.Background())

	firing := f.notifier.firing()
	if len(firing) != 1 || firing[0].Key.Condition != alerts.ConditionCPU {
		t.Fatalf("expected exactly one cpu firing event, got %+v", firing)
	}

	// Second run inside the cooldown, still breached: no re-dispatch.
	f.res.usage.CPUPercent = 90
	f.now = f.now.Add(10 * time.Minute)
	f.monitor.RunOnce(context.Background())
	if got := len(f.notifier.firing()); got != 1 {
		t.Fatalf("cpu alert re-dispatched inside cooldown (%d events)", got)
	}
}

func TestRun_CPUAndMemoryAreIndependentConditions(t *testing.T) {
	f := newFixture(t, web())
	f.res.usage = sysinfo.Usage{CPUPercent: 85, MemoryPercent: 95}

	f.monitor.RunOnce(context.Background())

	conds := map[alerts.Condition]bool{}
	for _, e := range f.notifier.firing() {
		conds[e.Key.Condition] = true
	}
	if !conds[alerts.ConditionCPU] || !conds[alerts.ConditionMemory] {
		t.Fatalf("expected both cpu and memory to fire, got %v", conds)
	}

	// Memory recovers, CPU stays breached: only memory clears.
	f.res.usage.MemoryPercent = 10
	f.now = f.now.Add(10 * time.Minute)
	f.monitor.RunOnce(context.Background())

	var memResolved bool
	for _, e := range f.notifier.events {
		if e.Status == alerts.StatusResolved && e.Key.Condition == alerts.ConditionMemory {
			memResolved = true
		}
	}
	if !memResolved {
		t.Fatal("memory recovery did not clear its record")
	}
	ok, _ := f.store.inner.ShouldFire(alerts.Key{Service: "web", Condition: alerts.ConditionCPU}, time.Hour, f.now)
	if ok {
		t.Fatal("cpu record vanished even though cpu is still breached")
	}
}

func TestRun_ThresholdEqualValueDoesNotFire(t *testing.T) {
	f := newFixture(t, web())
	// Exactly at threshold: strictly-greater comparison, no fire.
	f.res.usage = sysinfo.Usage{CPUPercent: 80, MemoryPercent: 80}
	f.logs.count = 10

	f.monitor.RunOnce(context.Background())

	if got := len(f.notifier.firing()); got != 0 {
		t.Fatalf("expected no firing events at exact thresholds, got %d: %+v", got, f.notifier.firing())
	}
}

func TestRun_PIDAbsentSkipsResourceConditions(t *testing.T) {
	f := newFixture(t, web())
	f.status.pid = 0

	f.monitor.RunOnce(context.Background())

	// Resource conditions are undefined without a PID: no fire, no clear.
	if f.store.touched(alerts.ConditionCPU) {
		t.Fatal("cpu key touched despite missing PID")
	}
	if f.store.touched(alerts.ConditionMemory) {
		t.Fatal("memory key touched despite missing PID")
	}
}

func TestRun_UnreadableSampleSkipsResourceConditions(t *testing.T) {
	f := newFixture(t, web())
	f.res.err = errors.New("proc unreadable")

	report := f.monitor.RunOnce(context.Background())

	if f.store.touched(alerts.ConditionCPU) || f.store.touched(alerts.ConditionMemory) {
		t.Fatal("resource keys touched despite unreadable sample")
	}
	if report.Services[0].CPU.Known {
		t.Fatal("unreadable sample reported as a known value")
	}
}

func TestRun_UnreadableLogCountSkipsErrorCondition(t *testing.T) {
	f := newFixture(t, web())
	f.logs.countErr = errors.New("journal unavailable")

	report := f.monitor.RunOnce(context.Background())

	// An unreadable count must not be treated as zero: zero would clear an
	// existing record.
	if f.store.touched(alerts.ConditionErrors) {
		t.Fatal("errors key touched despite unreadable log source")
	}
	if report.Services[0].Errors.Known {
		t.Fatal("unreadable count reported as a known value")
	}
}

func TestRun_ZeroErrorThresholdFiresOnAnyError(t *testing.T) {
	f := newFixture(t, web())
	zero := 0
	f.monitor.cfg.Thresholds.ErrorCount = &zero

	// Count 0 equals the threshold: strictly-greater, no fire.
	f.monitor.RunOnce(context.Background())
	if got := len(f.notifier.firing()); got != 0 {
		t.Fatalf("count 0 against threshold 0 fired %d events", got)
	}

	// A single error line is strictly greater than 0 and fires.
	f.logs.count = 1
	f.now = f.now.Add(time.Minute)
	f.monitor.RunOnce(context.Background())
	firing := f.notifier.firing()
	if len(firing) != 1 || firing[0].Key.Condition != alerts.ConditionErrors {
		t.Fatalf("expected errors condition to fire on count 1, got %+v", firing)
	}
}

func TestRun_LogErrorsAboveThresholdFire(t *testing.T) {
	f := newFixture(t, web())
	f.logs.count = 11

	f.monitor.RunOnce(context.Background())

	firing := f.notifier.firing()
	if len(firing) != 1 || firing[0].Key.Condition != alerts.ConditionErrors {
		t.Fatalf("expected errors condition to fire, got %+v", firing)
	}
}

func TestRun_StatusSourceUnavailableFiresNothing(t *testing.T) {
	f := newFixture(t, web())
	f.status.activeErr = errors.New("dbus unavailable")

	report := f.monitor.RunOnce(context.Background())

	if f.store.touched(alerts.ConditionDown) {
		t.Fatal("down key touched when status source was unreachable")
	}
	if report.Services[0].StatusKnown {
		t.Fatal("unreachable status source reported as a known status")
	}
}

func TestRun_HealthFailureFiresIndependentOfStatus(t *testing.T) {
	f := newFixture(t, []config.ServiceConfig{{Name: "web", HealthURL: "http://localhost:8080/health"}})
	f.prober.err = errors.New("request timed out")

	f.monitor.RunOnce(context.Background())

	firing := f.notifier.firing()
	if len(firing) != 1 || firing[0].Key.Condition != alerts.ConditionHealth {
		t.Fatalf("expected health condition to fire, got %+v", firing)
	}
}

func TestRun_RecoveryResetsAllConditions(t *testing.T) {
	f := newFixture(t, web())
	now := f.now

	// Previous invocations left down and cpu records behind.
	f.store.inner.RecordFired(alerts.Key{Service: "web", Condition: alerts.ConditionDown}, now.Add(-10*time.Minute))
	f.store.inner.RecordFired(alerts.Key{Service: "web", Condition: alerts.ConditionCPU}, now.Add(-10*time.Minute))

	f.monitor.RunOnce(context.Background())

	for _, key := range alerts.ServiceKeys("web") {
		ok, _ := f.store.inner.ShouldFire(key, time.Hour, now)
		if !ok {
			t.Fatalf("key %s still has a record after recovery", key)
		}
	}
}

func TestRun_OneServiceFailureDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, []config.ServiceConfig{{Name: "db"}, {Name: "web"}})
	f.status.active = false

	report := f.monitor.RunOnce(context.Background())

	if len(report.Services) != 2 {
		t.Fatalf("expected both services evaluated, got %d", len(report.Services))
	}
	if got := len(f.notifier.firing()); got != 2 {
		t.Fatalf("expected a down event per service, got %d", got)
	}
}

func TestRun_HealthySteadyStateTouchesNothingNoisy(t *testing.T) {
	f := newFixture(t, []config.ServiceConfig{{Name: "web", HealthURL: "http://localhost:8080/health"}})

	report := f.monitor.RunOnce(context.Background())

	if got := len(f.notifier.events); got != 0 {
		t.Fatalf("healthy run produced %d notifications", got)
	}
	if report.Services[0].Health != HealthOK {
		t.Fatal("health not reported OK")
	}
	if report.DownCount() != 0 || report.RunningCount() != 1 {
		t.Fatalf("unexpected counts: down=%d running=%d", report.DownCount(), report.RunningCount())
	}
}
