// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/zwavectl/internal/telemetry"
	"github.com/Thermoquad/zwavectl/pkg/inclusion"
	"github.com/Thermoquad/zwavectl/pkg/network"
	"github.com/Thermoquad/zwavectl/pkg/offline"
	"github.com/Thermoquad/zwavectl/pkg/transport"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

// hub wires a connection, the node registry and the workers that use them
type hub struct {
	conn       transport.Connection
	connInfo   string
	registry   *network.Registry
	builder    *zwave.Builder
	controller *transport.Controller
	pairing    *inclusion.Pairing
	engine     *offline.Engine

	onReport   transport.ReportHandler
	readerDone chan error
}

type hubOptions struct {
	offline  *offline.Config // Run the offline engine with this tuning
	onReport transport.ReportHandler
	onFrame  transport.FrameHandler
}

func openHub(opts hubOptions) (*hub, error) {
	registry := network.NewRegistry()
	if err := registry.LoadSnapshot(nodesPath); err != nil {
		return nil, err
	}
	if _, ok := registry.Node(zwave.GatewayNodeID); !ok {
		registry.Add(network.NewNode(network.NodeInfo{ID: zwave.GatewayNodeID}))
	}
	registry.OnTransition(func(t network.Transition) {
		telemetry.ObserveTransition(t.Online)
		publishNodeCounts(registry)
		logger.Info().Uint8("node", t.NodeID).Bool("online", t.Online).Msg("Node state changed")
	})
	publishNodeCounts(registry)

	conn, connInfo, err := transport.Open(connectionOptions())
	if err != nil {
		return nil, err
	}

	h := &hub{
		conn:       conn,
		connInfo:   connInfo,
		registry:   registry,
		builder:    zwave.NewBuilder(zwave.DefaultSequence()),
		onReport:   opts.onReport,
		readerDone: make(chan error, 1),
	}

	h.controller = transport.NewController(transport.ControllerParams{
		Conn:     conn,
		Registry: registry,
		Sequence: h.builder.Sequence(),
		OnReport: h.dispatch,
		OnFrame:  opts.onFrame,
		Logger:   logger.With().Str("component", "controller").Logger(),
	})

	h.pairing, err = inclusion.NewPairing(inclusion.PairingParams{
		Sender:   h.controller,
		Registry: registry,
		Builder:  h.builder,
		Logger:   logger.With().Str("component", "pairing").Logger(),
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	if opts.offline != nil {
		h.engine, err = offline.NewEngine(offline.EngineParams{
			Registry: registry,
			Sender:   h.controller,
			Config:   offline.StaticConfig(*opts.offline),
			Logger:   logger.With().Str("component", "offline").Logger(),
		})
		if err != nil {
			conn.Close()
			return nil, err
		}
	}

	return h, nil
}

func (h *hub) dispatch(nodeID uint8, r zwave.Report) {
	h.pairing.HandleReport(nodeID, r)
	if h.onReport != nil {
		h.onReport(nodeID, r)
	}
}

// start launches the read loop and, when configured, the offline engine
func (h *hub) start(ctx context.Context) error {
	go func() {
		h.readerDone <- h.controller.ReadLoop(ctx)
	}()

	if h.engine != nil {
		if err := h.engine.Start(ctx); err != nil {
			return fmt.Errorf("failed to start offline detection: %w", err)
		}
	}
	return nil
}

// close stops the workers, closes the connection and saves the registry
func (h *hub) close() error {
	if h.engine != nil {
		h.engine.Stop()
	}
	h.conn.Close()

	if err := h.registry.SaveSnapshot(nodesPath); err != nil {
		return err
	}
	logger.Debug().Str("path", nodesPath).Int("nodes", h.registry.Len()).Msg("Registry saved")
	return nil
}

func publishNodeCounts(r *network.Registry) {
	up, down := 0, 0
	for _, n := range r.NonGatewayNodes() {
		if n.Online() {
			up++
		} else {
			down++
		}
	}
	telemetry.SetNodeCounts(up, down)
}
