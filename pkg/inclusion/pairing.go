// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package inclusion drives adding nodes to and removing nodes from the
// network.
//
// Adding a node walks a short interview: once the controller reports the
// node added, its manufacturer ids are requested, then its association
// groupings, and finally every group is associated with the controller so
// unsolicited reports reach it.
package inclusion

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/zwavectl/pkg/network"
	"github.com/Thermoquad/zwavectl/pkg/offline"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

var (
	// ErrBusy is returned when inclusion or exclusion is already running
	ErrBusy = errors.New("pairing already in progress")

	// ErrNotActive is returned when stopping a process that is not running
	ErrNotActive = errors.New("pairing not in progress")
)

// State of the pairing process
type State int

const (
	StateIdle State = iota
	StateAdding
	StateRemoving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdding:
		return "adding"
	case StateRemoving:
		return "removing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Pairing runs one inclusion or exclusion at a time.
type Pairing struct {
	sender    offline.Sender
	registry  *network.Registry
	builder   *zwave.Builder
	scheduler offline.Scheduler
	clock     clock.Clock
	log       zerolog.Logger

	mu       sync.Mutex
	state    State
	stopTask offline.Task
	pending  map[uint8]network.NodeInfo // Added, awaiting manufacturer report
}

// PairingParams holds the collaborators for a new Pairing
type PairingParams struct {
	Sender    offline.Sender    // Required
	Registry  *network.Registry // Required
	Builder   *zwave.Builder    // Optional: defaults to the process-wide sequence
	Clock     clock.Clock       // Optional: defaults to the wall clock
	Scheduler offline.Scheduler // Optional: defaults to a ClockScheduler on Clock
	Logger    zerolog.Logger
}

func NewPairing(params PairingParams) (*Pairing, error) {
	if params.Sender == nil || params.Registry == nil {
		return nil, errors.New("pairing requires a sender and a registry")
	}
	if params.Builder == nil {
		params.Builder = zwave.NewBuilder(nil)
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if params.Scheduler == nil {
		params.Scheduler = offline.NewClockScheduler(params.Clock)
	}
	return &Pairing{
		sender:    params.Sender,
		registry:  params.Registry,
		builder:   params.Builder,
		scheduler: params.Scheduler,
		clock:     params.Clock,
		log:       params.Logger,
		pending:   make(map[uint8]network.NodeInfo),
	}, nil
}

func (p *Pairing) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// StartPairing puts the controller in add mode. A positive timeout stops
// add mode automatically.
func (p *Pairing) StartPairing(timeout time.Duration) error {
	return p.start(StateAdding, p.builder.StartNodeAdd(), timeout)
}

// StopPairing leaves add mode.
func (p *Pairing) StopPairing() error {
	return p.stop(StateAdding, p.builder.StopNodeAdd())
}

// StartRemoval puts the controller in remove mode. A positive timeout stops
// remove mode automatically.
func (p *Pairing) StartRemoval(timeout time.Duration) error {
	return p.start(StateRemoving, p.builder.StartNodeRemove(), timeout)
}

// StopRemoval leaves remove mode.
func (p *Pairing) StopRemoval() error {
	return p.stop(StateRemoving, p.builder.StopNodeRemove())
}

func (p *Pairing) start(state State, cmd zwave.Command, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return fmt.Errorf("cannot start %s: %w", state, ErrBusy)
	}
	if err := p.sender.Send(zwave.GatewayNodeID, cmd); err != nil {
		return fmt.Errorf("failed to start %s: %w", state, err)
	}

	p.state = state
	if timeout > 0 {
		p.stopTask = p.scheduler.ScheduleOnce(timeout, func() { p.expire(state) })
	}
	p.log.Info().Stringer("state", state).Dur("timeout", timeout).Msg("Pairing started")
	return nil
}

func (p *Pairing) stop(state State, cmd zwave.Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != state {
		return ErrNotActive
	}
	p.finishLocked()
	if err := p.sender.Send(zwave.GatewayNodeID, cmd); err != nil {
		return fmt.Errorf("failed to stop %s: %w", state, err)
	}
	p.log.Info().Stringer("state", state).Msg("Pairing stopped")
	return nil
}

func (p *Pairing) expire(state State) {
	var cmd zwave.Command
	switch state {
	case StateAdding:
		cmd = p.builder.StopNodeAdd()
	case StateRemoving:
		cmd = p.builder.StopNodeRemove()
	}

	if err := p.stop(state, cmd); err != nil && !errors.Is(err, ErrNotActive) {
		p.log.Warn().Err(err).Stringer("state", state).Msg("Pairing timeout stop failed")
		return
	}
	p.log.Debug().Stringer("state", state).Msg("Pairing timed out")
}

func (p *Pairing) finishLocked() {
	p.state = StateIdle
	if p.stopTask != nil {
		p.stopTask.Cancel()
		p.stopTask = nil
	}
}

// HandleReport advances the interview with a report received from nodeID.
// It reports whether the report was consumed.
func (p *Pairing) HandleReport(nodeID uint8, r zwave.Report) bool {
	switch r := r.(type) {
	case zwave.NodeAddStatus:
		p.handleAddStatus(r)
	case zwave.NodeRemoveStatus:
		p.handleRemoveStatus(r)
	case zwave.ManufacturerSpecificReport:
		return p.handleManufacturer(nodeID, r)
	case zwave.AssociationGroupingsReport:
		p.handleGroupings(nodeID, r)
	default:
		return false
	}
	return true
}

func (p *Pairing) handleAddStatus(r zwave.NodeAddStatus) {
	p.mu.Lock()
	if r.Status == zwave.AddStatusLearnReady || r.Status == zwave.AddStatusNodeFound {
		p.mu.Unlock()
		p.log.Debug().Uint8("status", r.Status).Msg("Node add in progress")
		return
	}
	if p.state == StateAdding {
		p.finishLocked()
	}
	if !r.Done() {
		p.mu.Unlock()
		p.log.Warn().Uint8("status", r.Status).Uint8("node", r.NodeID).Msg("Node add failed")
		return
	}
	if r.NodeID == 0 || r.NodeID > zwave.MaxNodeID {
		p.mu.Unlock()
		p.log.Warn().Uint8("node", r.NodeID).Msg("Node add reported invalid node id")
		return
	}
	p.pending[r.NodeID] = network.NodeInfo{
		ID:             r.NodeID,
		BasicClass:     r.BasicClass,
		GenericClass:   r.GenericClass,
		SpecificClass:  r.SpecificClass,
		CommandClasses: r.CommandClasses,
	}
	p.mu.Unlock()

	p.log.Info().Uint8("node", r.NodeID).Msg("Node added, requesting manufacturer info")
	p.send(r.NodeID, zwave.ManufacturerSpecificGet)
}

func (p *Pairing) handleManufacturer(nodeID uint8, r zwave.ManufacturerSpecificReport) bool {
	p.mu.Lock()
	info, ok := p.pending[nodeID]
	if ok {
		delete(p.pending, nodeID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}

	info.ManufacturerID = r.ManufacturerID
	info.ProductTypeID = r.ProductTypeID
	info.ProductID = r.ProductID
	n := network.NewNode(info)
	n.SetLastCall(p.clock.Now())
	p.registry.Add(n)

	p.log.Info().
		Uint8("node", nodeID).
		Str("manufacturer", fmt.Sprintf("%04X", r.ManufacturerID)).
		Str("product", fmt.Sprintf("%04X:%04X", r.ProductTypeID, r.ProductID)).
		Bool("wakeup", n.IsWakeupDevice()).
		Msg("Node registered")

	if n.SupportsClass(zwave.ClassAssociation) {
		p.send(nodeID, zwave.AssociationGroupingsGet)
	}
	return true
}

func (p *Pairing) handleGroupings(nodeID uint8, r zwave.AssociationGroupingsReport) {
	for group := uint8(1); group != 0 && group <= r.SupportedGroupings; group++ {
		p.send(nodeID, zwave.NewAssociationSet(group, zwave.GatewayNodeID))
	}
}

func (p *Pairing) handleRemoveStatus(r zwave.NodeRemoveStatus) {
	p.mu.Lock()
	if p.state == StateRemoving {
		p.finishLocked()
	}
	delete(p.pending, r.NodeID)
	p.mu.Unlock()

	if !r.Done() {
		p.log.Warn().Uint8("status", r.Status).Msg("Node removal failed")
		return
	}
	if _, err := p.registry.Remove(r.NodeID); err != nil {
		p.log.Debug().Uint8("node", r.NodeID).Msg("Removed node was not registered")
		return
	}
	p.log.Info().Uint8("node", r.NodeID).Msg("Node removed")
}

func (p *Pairing) send(nodeID uint8, cmd zwave.Command) {
	if err := p.sender.Send(nodeID, cmd); err != nil {
		p.log.Warn().Err(err).Uint8("node", nodeID).Str("cmd", zwave.FormatCommand(cmd)).Msg("Send failed")
	}
}
