// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package network tracks the nodes paired with the controller and their
// liveness state.
package network

import (
	"sync"
	"time"

	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

// NodeInfo is the identity of a node, fixed when it is paired.
type NodeInfo struct {
	ID             uint8
	BasicClass     uint8
	GenericClass   uint8
	SpecificClass  uint8
	CommandClasses []uint8
	ManufacturerID uint16
	ProductTypeID  uint16
	ProductID      uint16
}

// Node is one paired device. Identity is immutable; liveness fields are
// guarded by the node's own mutex so the offline engine and the transport
// read loop can update them concurrently.
type Node struct {
	info   NodeInfo
	wakeup bool

	mu             sync.Mutex
	online         bool
	strikes        uint32
	lastCall       time.Time
	offlineTimeout time.Duration
}

// NewNode creates a node that starts online with no strikes.
func NewNode(info NodeInfo) *Node {
	info.CommandClasses = append([]uint8(nil), info.CommandClasses...)
	n := &Node{info: info, online: true}
	for _, cc := range info.CommandClasses {
		if cc == zwave.ClassWakeUp {
			n.wakeup = true
			break
		}
	}
	return n
}

func (n *Node) ID() uint8 { return n.info.ID }

// Info returns a copy of the node identity.
func (n *Node) Info() NodeInfo {
	info := n.info
	info.CommandClasses = append([]uint8(nil), n.info.CommandClasses...)
	return info
}

// IsGateway reports whether the node is the controller itself.
func (n *Node) IsGateway() bool { return n.info.ID == zwave.GatewayNodeID }

// IsWakeupDevice reports whether the node sleeps and supports the Wake Up class.
func (n *Node) IsWakeupDevice() bool { return n.wakeup }

// SupportsClass reports whether the node advertised the command class.
func (n *Node) SupportsClass(class uint8) bool {
	for _, cc := range n.info.CommandClasses {
		if cc == class {
			return true
		}
	}
	return false
}

func (n *Node) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

// SetOnline updates the online flag and reports whether it changed.
func (n *Node) SetOnline(online bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.online == online {
		return false
	}
	n.online = online
	return true
}

func (n *Node) Strikes() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.strikes
}

// AddStrike increments the strike counter and returns the new value.
func (n *Node) AddStrike() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.strikes++
	return n.strikes
}

func (n *Node) LastCall() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastCall
}

// SetLastCall records when the node was last heard from and clears its strikes.
func (n *Node) SetLastCall(t time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastCall = t
	n.strikes = 0
}

// OfflineTimeout is the device-specific silence allowance, zero when unset.
func (n *Node) OfflineTimeout() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.offlineTimeout
}

// SetOfflineTimeout sets the silence allowance; zero falls back to the
// engine's adaptive floor.
func (n *Node) SetOfflineTimeout(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offlineTimeout = d
}

// Liveness is a consistent snapshot of a node's mutable fields.
type Liveness struct {
	Online         bool
	Strikes        uint32
	LastCall       time.Time
	OfflineTimeout time.Duration
}

func (n *Node) Liveness() Liveness {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Liveness{
		Online:         n.online,
		Strikes:        n.strikes,
		LastCall:       n.lastCall,
		OfflineTimeout: n.offlineTimeout,
	}
}

func (n *Node) restore(l Liveness) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.online = l.Online
	n.strikes = l.Strikes
	n.lastCall = l.LastCall
	n.offlineTimeout = l.OfflineTimeout
}
