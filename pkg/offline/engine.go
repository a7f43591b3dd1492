// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package offline decides which nodes are reachable. A recurring cycle probes
// silent nodes with BASIC_GET, counts strikes against the ones that stay
// silent and stretches its own timing as the probe queue grows so the radio
// channel is never saturated.
package offline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/zwavectl/internal/telemetry"
	"github.com/Thermoquad/zwavectl/pkg/network"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

// ErrAlreadyRunning is returned by Start on a running engine
var ErrAlreadyRunning = errors.New("offline engine already running")

// Sender delivers a command to a node. Delivery is best effort.
type Sender interface {
	Send(nodeID uint8, cmd zwave.Command) error
}

// Registry is the view of the node registry the engine needs.
type Registry interface {
	Nodes() []*network.Node
	NonGatewayNodes() []*network.Node
	SetOnline(n *network.Node, online bool, now time.Time) bool
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// EngineParams holds the collaborators for a new Engine
type EngineParams struct {
	Registry  Registry       // Required
	Sender    Sender         // Required
	Clock     clock.Clock    // Optional: defaults to the wall clock
	Scheduler Scheduler      // Optional: defaults to a ClockScheduler on Clock
	Config    ConfigProvider // Optional: defaults to DefaultConfig
	Logger    zerolog.Logger // Optional: defaults to a disabled logger
	Sleep     SleepFunc      // Optional: defaults to a Clock timer
}

// CycleResult describes one completed cycle.
type CycleResult struct {
	Start       time.Time
	Duration    time.Duration
	QueueSize   int
	Probed      []uint8 // Node ids sent a probe, in send order
	WentOffline []uint8 // Node ids taken offline this cycle
	SendErrors  int
	Timings     Timings
	Cancelled   bool // Context ended before every probe was sent
}

// Engine runs the offline detection cycle.
type Engine struct {
	registry  Registry
	sender    Sender
	clock     clock.Clock
	scheduler Scheduler
	config    ConfigProvider
	log       zerolog.Logger
	sleep     SleepFunc

	// cycleMu serialises cycles; checkSet and minimumOfflineTimeout belong to it
	cycleMu               sync.Mutex
	checkSet              map[uint8]*network.Node
	minimumOfflineTimeout time.Duration

	// generation increments on every Start; a callback armed by an earlier
	// run is stale and does nothing
	mu         sync.Mutex
	running    bool
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	task       Task
	last       CycleResult
	cycles     sync.WaitGroup
}

// NewEngine creates an engine. It does not start cycling; call Start.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Registry == nil {
		return nil, errors.New("offline engine requires a registry")
	}
	if params.Sender == nil {
		return nil, errors.New("offline engine requires a sender")
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if params.Scheduler == nil {
		params.Scheduler = NewClockScheduler(params.Clock)
	}
	if params.Config == nil {
		params.Config = StaticConfig(DefaultConfig())
	}

	e := &Engine{
		registry:              params.Registry,
		sender:                params.Sender,
		clock:                 params.Clock,
		scheduler:             params.Scheduler,
		config:                params.Config,
		log:                   params.Logger,
		sleep:                 params.Sleep,
		checkSet:              make(map[uint8]*network.Node),
		minimumOfflineTimeout: params.Config.OfflineConfig().MinOfflineTimeout,
	}
	if e.sleep == nil {
		e.sleep = e.clockSleep
	}
	return e, nil
}

// Start seeds every node's last call and arms the first cycle one base
// period from now. Nodes known online are treated as just heard from; the
// rest as silent since the epoch.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}

	cfg := e.config.OfflineConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	now := e.clock.Now()
	for _, n := range e.registry.Nodes() {
		if n.Online() {
			n.SetLastCall(now)
		} else {
			n.SetLastCall(time.UnixMilli(0))
		}
	}

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running = true
	e.generation++
	e.task = e.schedule(cfg.BasePeriod, e.generation)

	e.log.Info().
		Int("nodes", len(e.registry.Nodes())).
		Dur("first_check", cfg.BasePeriod).
		Msg("Offline detection started")
	return nil
}

// Stop cancels the pending cycle, interrupts a running one between probes
// and waits for it to return.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	if e.task != nil {
		e.task.Cancel()
		e.task = nil
	}
	e.mu.Unlock()

	e.cycles.Wait()
	e.log.Info().Msg("Offline detection stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// LastResult returns the most recent scheduled cycle's result.
func (e *Engine) LastResult() CycleResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// MinimumOfflineTimeout returns the adaptive silence floor for the next cycle.
func (e *Engine) MinimumOfflineTimeout() time.Duration {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	return e.minimumOfflineTimeout
}

// CheckSet returns the ids probed by the last cycle, ascending.
func (e *Engine) CheckSet() []uint8 {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	return sortedIDs(e.checkSet)
}

// schedule arms a tick for generation gen. Callers hold mu.
func (e *Engine) schedule(delay time.Duration, gen uint64) Task {
	return e.scheduler.ScheduleOnce(delay, func() { e.tick(gen) })
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	if !e.running || gen != e.generation {
		e.mu.Unlock()
		return
	}
	ctx := e.ctx
	e.cycles.Add(1)
	e.mu.Unlock()
	defer e.cycles.Done()

	result := e.RunCycle(ctx)
	observe(result)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}
	e.last = result
	if e.running {
		e.task = e.schedule(result.Timings.NextCheckDelay, gen)
	}
}

// RunCycle executes one detection cycle synchronously. The steps run in a
// fixed order: strike the previous check set, rebuild it from the registry,
// recompute timings from its size, then evict and probe its members one at
// a time.
func (e *Engine) RunCycle(ctx context.Context) CycleResult {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	cfg := e.config.OfflineConfig()
	result := CycleResult{Start: e.clock.Now()}

	for _, n := range e.checkSet {
		n.AddStrike()
	}

	now := e.clock.Now()
	clear(e.checkSet)
	for _, n := range e.registry.NonGatewayNodes() {
		live := n.Liveness()
		if !live.Online {
			if !n.IsWakeupDevice() {
				e.checkSet[n.ID()] = n
			}
			continue
		}

		timeout := max(e.minimumOfflineTimeout, live.OfflineTimeout)
		if now.Sub(live.LastCall) <= timeout {
			continue
		}

		if n.IsWakeupDevice() {
			if e.registry.SetOnline(n, false, now) {
				result.WentOffline = append(result.WentOffline, n.ID())
				e.log.Info().
					Uint8("node", n.ID()).
					Dur("silent", now.Sub(live.LastCall)).
					Msg("Wakeup device missed its timeout, marking offline")
			}
			continue
		}
		e.checkSet[n.ID()] = n
	}

	result.QueueSize = len(e.checkSet)
	result.Timings = cfg.Timings(result.QueueSize)
	e.minimumOfflineTimeout = result.Timings.MinimumOfflineTimeout

	ids := sortedIDs(e.checkSet)
	for i, id := range ids {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		n := e.checkSet[id]
		if n.Strikes() > cfg.StrikeThreshold {
			if e.registry.SetOnline(n, false, e.clock.Now()) {
				result.WentOffline = append(result.WentOffline, id)
				e.log.Info().
					Uint8("node", id).
					Uint32("strikes", n.Strikes()).
					Msg("Node exceeded strike threshold, marking offline")
			}
		}

		if err := e.sender.Send(id, zwave.BasicGet); err != nil {
			result.SendErrors++
			e.log.Warn().Err(err).Uint8("node", id).Msg("Probe send failed")
		}
		result.Probed = append(result.Probed, id)

		if i < len(ids)-1 {
			if err := e.sleep(ctx, result.Timings.PerProbeDelay); err != nil {
				result.Cancelled = true
				break
			}
		}
	}

	result.Duration = e.clock.Since(result.Start)
	e.log.Debug().
		Int("queue", result.QueueSize).
		Int("probed", len(result.Probed)).
		Int("offline", len(result.WentOffline)).
		Dur("next", result.Timings.NextCheckDelay).
		Dur("min_timeout", result.Timings.MinimumOfflineTimeout).
		Dur("probe_delay", result.Timings.PerProbeDelay).
		Msg("Offline check cycle complete")
	return result
}

func (e *Engine) clockSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := e.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func observe(r CycleResult) {
	telemetry.OfflineQueueSize.Set(float64(r.QueueSize))
	telemetry.OfflineNextCheckDelay.Set(r.Timings.NextCheckDelay.Seconds())
	telemetry.OfflineMinimumTimeout.Set(r.Timings.MinimumOfflineTimeout.Seconds())
	telemetry.OfflineCycleDuration.Observe(r.Duration.Seconds())
	sent := len(r.Probed) - r.SendErrors
	telemetry.ProbesTotal.WithLabelValues("sent").Add(float64(sent))
	telemetry.ProbesTotal.WithLabelValues("failed").Add(float64(r.SendErrors))
}

func sortedIDs(set map[uint8]*network.Node) []uint8 {
	ids := make([]uint8, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
