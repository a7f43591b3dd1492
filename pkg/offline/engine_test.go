// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package offline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/zwavectl/pkg/network"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

type sentProbe struct {
	nodeID uint8
	cmd    zwave.Command
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentProbe
	err  error
}

func (s *fakeSender) Send(nodeID uint8, cmd zwave.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentProbe{nodeID, cmd})
	return s.err
}

func (s *fakeSender) reset() []sentProbe {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := s.sent
	s.sent = nil
	return sent
}

type fakeTask struct {
	cancelled bool
}

func (t *fakeTask) Cancel() bool {
	t.cancelled = true
	return true
}

type fakeScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
	tasks  []*fakeTask
}

func (s *fakeScheduler) ScheduleOnce(delay time.Duration, fn func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTask{}
	s.delays = append(s.delays, delay)
	s.fns = append(s.fns, fn)
	s.tasks = append(s.tasks, t)
	return t
}

func (s *fakeScheduler) fireLast() {
	s.mu.Lock()
	i := len(s.fns) - 1
	s.mu.Unlock()
	s.fire(i)
}

func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	fn := s.fns[i]
	s.mu.Unlock()
	fn()
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

type harness struct {
	clock    *clock.Mock
	registry *network.Registry
	sender   *fakeSender
	sched    *fakeScheduler
	sleeps   *sleepRecorder
	engine   *Engine
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.NewMock(),
		registry: network.NewRegistry(),
		sender:   &fakeSender{},
		sched:    &fakeScheduler{},
		sleeps:   &sleepRecorder{},
	}
	h.clock.Set(time.Unix(1_700_000_000, 0))
	h.registry.Add(network.NewNode(network.NodeInfo{ID: zwave.GatewayNodeID}))

	e, err := NewEngine(EngineParams{
		Registry:  h.registry,
		Sender:    h.sender,
		Clock:     h.clock,
		Scheduler: h.sched,
		Config:    StaticConfig(cfg),
		Logger:    zerolog.Nop(),
		Sleep:     h.sleeps.sleep,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	h.engine = e
	return h
}

// addNode registers a node that was last heard silentFor ago
func (h *harness) addNode(id uint8, wakeup bool, timeout, silentFor time.Duration) *network.Node {
	info := network.NodeInfo{ID: id, CommandClasses: []uint8{zwave.ClassBasic}}
	if wakeup {
		info.CommandClasses = append(info.CommandClasses, zwave.ClassWakeUp)
	}
	n := network.NewNode(info)
	n.SetOfflineTimeout(timeout)
	n.SetLastCall(h.clock.Now().Add(-silentFor))
	h.registry.Add(n)
	return n
}

func probedIDs(sent []sentProbe) []uint8 {
	ids := make([]uint8, 0, len(sent))
	for _, s := range sent {
		ids = append(ids, s.nodeID)
	}
	return ids
}

func equalIDs(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestConfigTimings_BelowFloor(t *testing.T) {
	cfg := DefaultConfig()
	for q := 0; q <= cfg.IncreaseFloor; q++ {
		got := cfg.Timings(q)
		if got.NextCheckDelay != cfg.BasePeriod {
			t.Errorf("q=%d: NextCheckDelay = %v, want %v", q, got.NextCheckDelay, cfg.BasePeriod)
		}
		if got.PerProbeDelay != cfg.BasePollingDelay {
			t.Errorf("q=%d: PerProbeDelay = %v, want %v", q, got.PerProbeDelay, cfg.BasePollingDelay)
		}
	}

	// The silence floor is left unclamped below the increase floor
	if got := cfg.Timings(cfg.IncreaseFloor).MinimumOfflineTimeout; got != cfg.MinOfflineTimeout {
		t.Errorf("MinimumOfflineTimeout at floor = %v, want %v", got, cfg.MinOfflineTimeout)
	}
	want := cfg.MinOfflineTimeout - 2*cfg.MinOfflineTimeoutIncrease
	if got := cfg.Timings(cfg.IncreaseFloor - 2).MinimumOfflineTimeout; got != want {
		t.Errorf("MinimumOfflineTimeout below floor = %v, want %v", got, want)
	}
}

func TestConfigTimings_Values(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.Timings(9)
	want := Timings{
		NextCheckDelay:        60*time.Second + 4*5*time.Second,
		MinimumOfflineTimeout: 10*time.Minute + 4*30*time.Second,
		PerProbeDelay:         time.Second + 4*250*time.Millisecond,
	}
	if got != want {
		t.Errorf("Timings(9) = %+v, want %+v", got, want)
	}
}

func TestConfigTimings_Monotonic(t *testing.T) {
	cfg := DefaultConfig()
	prev := cfg.Timings(cfg.IncreaseFloor)
	for q := cfg.IncreaseFloor + 1; q < 64; q++ {
		got := cfg.Timings(q)
		if got.NextCheckDelay < prev.NextCheckDelay ||
			got.MinimumOfflineTimeout < prev.MinimumOfflineTimeout ||
			got.PerProbeDelay < prev.PerProbeDelay {
			t.Fatalf("Timings(%d) = %+v decreased from %+v", q, got, prev)
		}
		prev = got
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero base period", func(c *Config) { c.BasePeriod = 0 }, true},
		{"negative floor", func(c *Config) { c.IncreaseFloor = -1 }, true},
		{"negative increase", func(c *Config) { c.PollingDelayIncrease = -time.Second }, true},
		{"negative polling delay", func(c *Config) { c.BasePollingDelay = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewEngine_RequiresCollaborators(t *testing.T) {
	if _, err := NewEngine(EngineParams{Sender: &fakeSender{}}); err == nil {
		t.Error("expected error without registry")
	}
	if _, err := NewEngine(EngineParams{Registry: network.NewRegistry()}); err == nil {
		t.Error("expected error without sender")
	}
}

func TestRunCycle_WakeupDeviceGoesOfflineWithoutProbe(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	n := h.addNode(2, true, time.Hour, 2*time.Hour)

	r := h.engine.RunCycle(context.Background())

	if n.Online() {
		t.Error("wakeup device still online")
	}
	if sent := h.sender.reset(); len(sent) != 0 {
		t.Errorf("probes sent = %v, want none", probedIDs(sent))
	}
	if !equalIDs(r.WentOffline, []uint8{2}) {
		t.Errorf("WentOffline = %v, want [2]", r.WentOffline)
	}
	if n.Strikes() != 0 {
		t.Errorf("Strikes() = %d, want 0", n.Strikes())
	}
}

func TestRunCycle_ListeningDeviceIsProbed(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	n := h.addNode(3, false, time.Hour, 2*time.Hour)

	r := h.engine.RunCycle(context.Background())

	if !n.Online() {
		t.Error("listening device taken offline on first cycle")
	}
	sent := h.sender.reset()
	if len(sent) != 1 || sent[0].nodeID != 3 {
		t.Fatalf("probes = %v, want one to node 3", probedIDs(sent))
	}
	if sent[0].cmd != zwave.BasicGet {
		t.Errorf("probe command = %v, want BasicGet", sent[0].cmd)
	}
	if r.QueueSize != 1 {
		t.Errorf("QueueSize = %d, want 1", r.QueueSize)
	}
	if !equalIDs(h.engine.CheckSet(), []uint8{3}) {
		t.Errorf("CheckSet() = %v, want [3]", h.engine.CheckSet())
	}
}

func TestRunCycle_GatewayNeverEvaluated(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	gw, _ := h.registry.Node(zwave.GatewayNodeID)
	gw.SetOnline(false)

	h.engine.RunCycle(context.Background())

	if sent := h.sender.reset(); len(sent) != 0 {
		t.Errorf("probes = %v, want none", probedIDs(sent))
	}
	if gw.Strikes() != 0 {
		t.Errorf("gateway Strikes() = %d, want 0", gw.Strikes())
	}
}

func TestRunCycle_OfflineDevicesKeepBeingProbed(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	listening := h.addNode(4, false, 0, 0)
	sleepy := h.addNode(5, true, 0, 0)
	listening.SetOnline(false)
	sleepy.SetOnline(false)

	h.engine.RunCycle(context.Background())

	sent := h.sender.reset()
	if !equalIDs(probedIDs(sent), []uint8{4}) {
		t.Errorf("probes = %v, want [4]", probedIDs(sent))
	}
}

func TestRunCycle_EffectiveTimeoutUsesLarger(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(t, cfg)
	// Device timeout below the floor: the floor wins
	short := h.addNode(6, false, time.Minute, 5*time.Minute)
	// Device timeout above the floor: the device timeout wins
	long := h.addNode(7, false, time.Hour, 30*time.Minute)

	h.engine.RunCycle(context.Background())

	if sent := h.sender.reset(); len(sent) != 0 {
		t.Errorf("probes = %v, want none", probedIDs(sent))
	}
	if !short.Online() || !long.Online() {
		t.Error("node taken offline inside its effective timeout")
	}
}

func TestRunCycle_ProbesSpacedAndOrdered(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	for _, id := range []uint8{30, 12, 8, 21, 17, 9, 40} {
		h.addNode(id, false, 0, time.Hour)
	}

	r := h.engine.RunCycle(context.Background())

	want := []uint8{8, 9, 12, 17, 21, 30, 40}
	if got := probedIDs(h.sender.reset()); !equalIDs(got, want) {
		t.Errorf("probe order = %v, want %v", got, want)
	}
	if !equalIDs(r.Probed, want) {
		t.Errorf("Probed = %v, want %v", r.Probed, want)
	}

	// 7 queued, floor 5: two over
	wantDelay := time.Second + 2*250*time.Millisecond
	if len(h.sleeps.delays) != len(want)-1 {
		t.Fatalf("sleeps = %d, want %d", len(h.sleeps.delays), len(want)-1)
	}
	for i, d := range h.sleeps.delays {
		if d != wantDelay {
			t.Errorf("sleep %d = %v, want %v", i, d, wantDelay)
		}
	}
	if r.Timings.NextCheckDelay != 70*time.Second {
		t.Errorf("NextCheckDelay = %v, want 70s", r.Timings.NextCheckDelay)
	}
	if got := h.engine.MinimumOfflineTimeout(); got != 11*time.Minute {
		t.Errorf("MinimumOfflineTimeout() = %v, want 11m", got)
	}
}

func TestRunCycle_SendErrorsAreCounted(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.sender.err = errors.New("radio busy")
	n := h.addNode(3, false, 0, time.Hour)

	r := h.engine.RunCycle(context.Background())

	if r.SendErrors != 1 || len(r.Probed) != 1 {
		t.Errorf("SendErrors = %d Probed = %v, want 1 and [3]", r.SendErrors, r.Probed)
	}
	if !n.Online() {
		t.Error("send failure took node offline")
	}
}

func TestRunCycle_CancelledBetweenProbes(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	for _, id := range []uint8{2, 3, 4} {
		h.addNode(id, false, 0, time.Hour)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.engine.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	r := h.engine.RunCycle(ctx)

	if !r.Cancelled {
		t.Error("Cancelled = false")
	}
	if got := probedIDs(h.sender.reset()); !equalIDs(got, []uint8{2}) {
		t.Errorf("probes = %v, want [2]", got)
	}
}

func TestRunCycle_HeardFromStopsProbing(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	n := h.addNode(3, false, time.Hour, 2*time.Hour)

	h.engine.RunCycle(context.Background())
	h.engine.RunCycle(context.Background())
	if n.Strikes() != 1 {
		t.Fatalf("Strikes() = %d after two cycles, want 1", n.Strikes())
	}
	h.sender.reset()

	if err := h.registry.HeardFrom(3, h.clock.Now()); err != nil {
		t.Fatalf("HeardFrom failed: %v", err)
	}

	h.engine.RunCycle(context.Background())
	if sent := h.sender.reset(); len(sent) != 0 {
		t.Errorf("probes after HeardFrom = %v, want none", probedIDs(sent))
	}

	h.engine.RunCycle(context.Background())
	if !n.Online() {
		t.Error("node went offline after responding")
	}
	if len(h.engine.CheckSet()) != 0 {
		t.Errorf("CheckSet() = %v, want empty", h.engine.CheckSet())
	}
}

func TestRunCycle_EndToEndScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StrikeThreshold = 3
	h := newHarness(t, cfg)

	n1 := h.addNode(2, true, time.Hour, 2*time.Hour)
	n2 := h.addNode(3, false, time.Hour, 2*time.Hour)
	n3 := h.addNode(4, false, time.Hour, time.Minute)

	// Cycle 1
	r := h.engine.RunCycle(context.Background())
	if n1.Online() || n1.Strikes() != 0 {
		t.Errorf("N1 online=%v strikes=%d, want offline with 0 strikes", n1.Online(), n1.Strikes())
	}
	if !n2.Online() || n2.Strikes() != 0 {
		t.Errorf("N2 online=%v strikes=%d, want online with 0 strikes", n2.Online(), n2.Strikes())
	}
	if !n3.Online() || n3.Strikes() != 0 {
		t.Errorf("N3 online=%v strikes=%d, want untouched", n3.Online(), n3.Strikes())
	}
	if got := probedIDs(h.sender.reset()); !equalIDs(got, []uint8{3}) {
		t.Errorf("cycle 1 probes = %v, want [3]", got)
	}
	if !equalIDs(r.WentOffline, []uint8{2}) {
		t.Errorf("cycle 1 WentOffline = %v, want [2]", r.WentOffline)
	}

	// Cycles 2..4: one strike per cycle, still below the threshold
	for cycle := 2; cycle <= 4; cycle++ {
		h.engine.RunCycle(context.Background())
		if got := probedIDs(h.sender.reset()); !equalIDs(got, []uint8{3}) {
			t.Errorf("cycle %d probes = %v, want [3]", cycle, got)
		}
		if want := uint32(cycle - 1); n2.Strikes() != want {
			t.Errorf("cycle %d: N2 strikes = %d, want %d", cycle, n2.Strikes(), want)
		}
		if !n2.Online() {
			t.Fatalf("cycle %d: N2 offline with %d strikes", cycle, n2.Strikes())
		}
	}

	// Cycle 5: strikes pass the threshold and N2 goes offline, still probed
	r = h.engine.RunCycle(context.Background())
	if n2.Online() {
		t.Errorf("cycle 5: N2 online with %d strikes", n2.Strikes())
	}
	if n2.Strikes() != 4 {
		t.Errorf("cycle 5: N2 strikes = %d, want 4", n2.Strikes())
	}
	if !equalIDs(r.WentOffline, []uint8{3}) {
		t.Errorf("cycle 5 WentOffline = %v, want [3]", r.WentOffline)
	}
	if got := probedIDs(h.sender.reset()); !equalIDs(got, []uint8{3}) {
		t.Errorf("cycle 5 probes = %v, want [3]", got)
	}

	// Cycle 6: offline N2 keeps being probed without a second transition
	r = h.engine.RunCycle(context.Background())
	if len(r.WentOffline) != 0 {
		t.Errorf("cycle 6 WentOffline = %v, want none", r.WentOffline)
	}
	if got := probedIDs(h.sender.reset()); !equalIDs(got, []uint8{3}) {
		t.Errorf("cycle 6 probes = %v, want [3]", got)
	}
	if !n3.Online() || n3.Strikes() != 0 {
		t.Errorf("N3 online=%v strikes=%d, want untouched", n3.Online(), n3.Strikes())
	}
}

func TestEngine_StartSeedsLastCallAndSchedules(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(t, cfg)
	online := h.addNode(3, false, 0, 3*time.Hour)
	offline := h.addNode(4, false, 0, time.Minute)
	offline.SetOnline(false)

	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.engine.Stop()

	if !online.LastCall().Equal(h.clock.Now()) {
		t.Errorf("online LastCall() = %v, want now", online.LastCall())
	}
	if !offline.LastCall().Equal(time.UnixMilli(0)) {
		t.Errorf("offline LastCall() = %v, want epoch", offline.LastCall())
	}
	if len(h.sched.delays) != 1 || h.sched.delays[0] != cfg.BasePeriod {
		t.Fatalf("scheduled delays = %v, want [%v]", h.sched.delays, cfg.BasePeriod)
	}
	if err := h.engine.Start(context.Background()); err != ErrAlreadyRunning {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	// Firing the task runs a cycle and re-arms with the computed delay
	h.sched.fireLast()
	if got := probedIDs(h.sender.reset()); !equalIDs(got, []uint8{4}) {
		t.Errorf("probes = %v, want [4]", got)
	}
	if len(h.sched.delays) != 2 || h.sched.delays[1] != cfg.BasePeriod {
		t.Errorf("scheduled delays = %v, want second %v", h.sched.delays, cfg.BasePeriod)
	}
	if h.engine.LastResult().QueueSize != 1 {
		t.Errorf("LastResult().QueueSize = %d, want 1", h.engine.LastResult().QueueSize)
	}
}

func TestEngine_StopCancelsPendingTask(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.addNode(3, false, 0, time.Hour)

	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.engine.Stop()

	if !h.sched.tasks[0].cancelled {
		t.Error("pending task not cancelled")
	}
	if h.engine.Running() {
		t.Error("Running() = true after Stop")
	}

	// A timer that fired anyway must not run a cycle or re-arm
	h.sched.fireLast()
	if sent := h.sender.reset(); len(sent) != 0 {
		t.Errorf("probes after Stop = %v", probedIDs(sent))
	}
	if len(h.sched.delays) != 1 {
		t.Errorf("scheduled delays = %v, want no re-arm", h.sched.delays)
	}

	h.engine.Stop()
}

func TestEngine_RestartIgnoresStaleTimer(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	offline := h.addNode(4, false, 0, time.Minute)
	offline.SetOnline(false)

	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.engine.Stop()
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer h.engine.Stop()

	// The first run's timer fires late, after the restart
	h.sched.fire(0)
	if sent := h.sender.reset(); len(sent) != 0 {
		t.Errorf("probes from stale timer = %v", probedIDs(sent))
	}
	if len(h.sched.delays) != 2 {
		t.Fatalf("scheduled delays = %v, want 2 entries", h.sched.delays)
	}

	h.sched.fire(1)
	if got := probedIDs(h.sender.reset()); !equalIDs(got, []uint8{4}) {
		t.Errorf("probes = %v, want [4]", got)
	}
	if len(h.sched.delays) != 3 {
		t.Errorf("scheduled delays = %v, want one re-arm", h.sched.delays)
	}

	// Firing the stale timer again still adds no second chain
	h.sched.fire(0)
	if len(h.sched.delays) != 3 {
		t.Errorf("scheduled delays = %v, want no extra chain", h.sched.delays)
	}
}

func TestEngine_StartRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BasePeriod = 0
	h := newHarness(t, cfg)
	if err := h.engine.Start(context.Background()); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestClockScheduler_RunsAndCancels(t *testing.T) {
	mock := clock.NewMock()
	s := NewClockScheduler(mock)

	ran := make(chan struct{}, 1)
	s.ScheduleOnce(5*time.Second, func() { ran <- struct{}{} })

	cancelled := s.ScheduleOnce(5*time.Second, func() { t.Error("cancelled task ran") })
	if !cancelled.Cancel() {
		t.Error("Cancel() = false before firing")
	}

	mock.Add(5 * time.Second)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("scheduled task did not run")
	}
}

func TestEngine_ClockSleepHonoursContext(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.engine.clockSleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("clockSleep() = %v, want context.Canceled", err)
	}
	if err := h.engine.clockSleep(context.Background(), 0); err != nil {
		t.Errorf("clockSleep(0) = %v, want nil", err)
	}
}
