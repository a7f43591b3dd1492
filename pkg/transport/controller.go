// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport talks the Z-Wave Serial API to the controller stick.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/zwavectl/internal/telemetry"
	"github.com/Thermoquad/zwavectl/pkg/network"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

// ReportHandler receives every command a node sends to the controller
type ReportHandler func(nodeID uint8, r zwave.Report)

// FrameHandler receives every decoded inbound frame
type FrameHandler func(f *zwave.Frame)

// ControllerParams holds the collaborators for a new Controller
type ControllerParams struct {
	Conn      io.ReadWriter     // Required
	Registry  *network.Registry // Optional: heard-from tracking is skipped if nil
	Sequence  *zwave.Sequence   // Optional: callback ids, defaults to the process-wide sequence
	Clock     clock.Clock       // Optional: defaults to the wall clock
	TxOptions uint8             // Optional: defaults to zwave.DefaultTransmitOptions
	OnReport  ReportHandler
	OnFrame   FrameHandler
	Logger    zerolog.Logger
}

// Controller wraps outbound commands in SEND_DATA and dispatches inbound
// application commands.
type Controller struct {
	conn      io.ReadWriter
	registry  *network.Registry
	seq       *zwave.Sequence
	clock     clock.Clock
	txOptions uint8
	onReport  ReportHandler
	onFrame   FrameHandler
	log       zerolog.Logger

	writeMu sync.Mutex
	encoder *zwave.Encoder
}

func NewController(params ControllerParams) *Controller {
	if params.Sequence == nil {
		params.Sequence = zwave.DefaultSequence()
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if params.TxOptions == 0 {
		params.TxOptions = zwave.DefaultTransmitOptions
	}
	return &Controller{
		conn:      params.Conn,
		registry:  params.Registry,
		seq:       params.Sequence,
		clock:     params.Clock,
		txOptions: params.TxOptions,
		onReport:  params.OnReport,
		onFrame:   params.OnFrame,
		log:       params.Logger,
		encoder:   zwave.NewEncoder(),
	}
}

// Send transmits cmd to nodeID. It returns once the frame is written; there
// is no delivery confirmation. NODE_INFORMATION_SEND always goes to the
// broadcast id without routing.
func (c *Controller) Send(nodeID uint8, cmd zwave.Command) error {
	tx := c.txOptions
	if nif, ok := cmd.(zwave.NodeInfoSend); ok {
		nodeID = nif.TargetNodeID()
		tx = nif.TxOptions()
	}

	f := zwave.NewSendDataFrame(nodeID, cmd, tx, c.seq.Next())
	if err := c.WriteFrame(f); err != nil {
		return fmt.Errorf("send %s to node %d: %w", zwave.FormatCommand(cmd), nodeID, err)
	}
	c.log.Trace().Uint8("node", nodeID).Str("cmd", zwave.FormatCommand(cmd)).Msg("Sent")
	return nil
}

// WriteFrame encodes and writes one frame.
func (c *Controller) WriteFrame(f *zwave.Frame) error {
	data, err := c.encoder.Encode(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(data); err != nil {
		return err
	}
	telemetry.FramesTotal.WithLabelValues("out", frameKind(f)).Inc()
	return nil
}

const (
	readRetryDelay = 10 * time.Millisecond
	maxReadErrors  = 10
)

// ReadLoop decodes inbound bytes until the connection closes or ctx is
// done. Reads block, so closing the connection is what unblocks a
// cancelled loop. Transient read errors are retried after a short delay;
// maxReadErrors in a row end the loop with the last error.
func (c *Controller) ReadLoop(ctx context.Context) error {
	decoder := zwave.NewDecoder()
	buf := make([]byte, 256)
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := c.conn.Read(buf)
		for i := 0; i < n; i++ {
			f, derr := decoder.DecodeByte(buf[i])
			if derr != nil {
				c.handleDecodeError(derr)
				continue
			}
			if f != nil {
				c.handleFrame(f)
			}
		}

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
				c.log.Info().Msg("Connection closed")
				return nil
			}
			failures++
			c.log.Warn().Err(err).Int("failures", failures).Msg("Read error")
			if failures >= maxReadErrors {
				return fmt.Errorf("read failed %d times: %w", failures, err)
			}
			c.clock.Sleep(readRetryDelay)
			continue
		}
		failures = 0
	}
}

func (c *Controller) handleDecodeError(err error) {
	telemetry.DecodeErrorsTotal.Inc()
	c.log.Debug().Err(err).Msg("Frame rejected")

	// A corrupted frame asks the stick to retransmit
	if errors.Is(err, zwave.ErrChecksum) {
		if werr := c.WriteFrame(zwave.NewControlFrame(zwave.NAK)); werr != nil {
			c.log.Warn().Err(werr).Msg("Failed to send NAK")
		}
	}
}

func (c *Controller) handleFrame(f *zwave.Frame) {
	telemetry.FramesTotal.WithLabelValues("in", frameKind(f)).Inc()

	if !f.IsControl() {
		if err := c.WriteFrame(zwave.NewControlFrame(zwave.ACK)); err != nil {
			c.log.Warn().Err(err).Msg("Failed to send ACK")
		}
	}

	if c.onFrame != nil {
		c.onFrame(f)
	}

	ac, ok := f.ApplicationCommand()
	if !ok {
		return
	}

	if c.registry != nil {
		if err := c.registry.HeardFrom(ac.SourceID, c.clock.Now()); err != nil {
			c.log.Debug().Uint8("node", ac.SourceID).Msg("Frame from unregistered node")
		}
	}

	r, err := zwave.ParseReport(ac.Command)
	if err != nil {
		c.log.Debug().Err(err).Uint8("node", ac.SourceID).Msg("Unparsable command")
		return
	}
	if c.onReport != nil {
		c.onReport(ac.SourceID, r)
	}
}

func frameKind(f *zwave.Frame) string {
	switch {
	case f.IsControl():
		return "control"
	case f.Type() == zwave.FrameTypeResponse:
		return "response"
	default:
		return "request"
	}
}
