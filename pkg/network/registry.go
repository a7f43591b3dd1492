// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package network

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrUnknownNode is returned when a node id is not in the registry
var ErrUnknownNode = errors.New("unknown node")

// Transition is delivered to listeners when a node changes online state.
type Transition struct {
	NodeID    uint8
	Online    bool
	Timestamp time.Time
}

// TransitionHandler receives online/offline transitions.
type TransitionHandler func(Transition)

// Registry holds every paired node keyed by node id.
type Registry struct {
	mu    sync.RWMutex
	nodes map[uint8]*Node

	handlers struct {
		sync.RWMutex
		list []TransitionHandler
	}
}

func NewRegistry() *Registry {
	return &Registry{nodes: make(map[uint8]*Node)}
}

// Add inserts a node, replacing any node with the same id.
func (r *Registry) Add(n *Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[n.ID()] = n
}

// Remove deletes a node and returns it.
func (r *Registry) Remove(id uint8) (*Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return nil, ErrUnknownNode
	}
	delete(r.nodes, id)
	return n, nil
}

func (r *Registry) Node(id uint8) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Nodes returns every node sorted by id.
func (r *Registry) Nodes() []*Node {
	r.mu.RLock()
	nodes := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		nodes = append(nodes, n)
	}
	r.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return nodes
}

// NonGatewayNodes returns every node except the controller, sorted by id.
func (r *Registry) NonGatewayNodes() []*Node {
	all := r.Nodes()
	nodes := all[:0]
	for _, n := range all {
		if !n.IsGateway() {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// OnTransition registers a handler for online/offline changes.
func (r *Registry) OnTransition(h TransitionHandler) {
	r.handlers.Lock()
	defer r.handlers.Unlock()
	r.handlers.list = append(r.handlers.list, h)
}

// SetOnline changes a node's online flag and notifies listeners when it
// actually changed.
func (r *Registry) SetOnline(n *Node, online bool, now time.Time) bool {
	if !n.SetOnline(online) {
		return false
	}
	r.notify(Transition{NodeID: n.ID(), Online: online, Timestamp: now})
	return true
}

// HeardFrom records inbound traffic from a node: last call is refreshed,
// strikes cleared and the node brought online.
func (r *Registry) HeardFrom(id uint8, now time.Time) error {
	n, ok := r.Node(id)
	if !ok {
		return ErrUnknownNode
	}
	n.SetLastCall(now)
	r.SetOnline(n, true, now)
	return nil
}

func (r *Registry) notify(t Transition) {
	r.handlers.RLock()
	handlers := append([]TransitionHandler(nil), r.handlers.list...)
	r.handlers.RUnlock()

	for _, h := range handlers {
		h(t)
	}
}
