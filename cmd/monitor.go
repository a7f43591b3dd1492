// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive hub monitor",
	Long: `Run the hub with offline detection in an interactive terminal UI.

The node list shows liveness as the offline engine updates it. Commands typed
at the prompt:

  include [timeout]                  start add mode
  exclude [timeout]                  start remove mode
  stop                               leave add or remove mode
  nif                                broadcast the node information frame
  timeout <node> <seconds>           set a node's offline timeout, 0 clears it
  send <node> <class> <cmd> [hex]    send a raw command

Keys: Tab switches between the node list and the prompt, q or Ctrl+C quits.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	addOfflineFlags(monitorCmd)
	rootCmd.AddCommand(monitorCmd)
}

// eventWriter queues formatted log lines for the TUI event log. Lines are
// dropped when the queue is full; Write never blocks.
type eventWriter struct {
	lines chan string
}

func newEventWriter() *eventWriter {
	return &eventWriter{lines: make(chan string, 256)}
}

func (w *eventWriter) Write(b []byte) (int, error) {
	select {
	case w.lines <- strings.TrimRight(string(b), "\n"):
	default:
	}
	return len(b), nil
}

// forward delivers queued lines to p until ctx is done
func (w *eventWriter) forward(ctx context.Context, p *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-w.lines:
			p.Send(monitorLogMsg(line))
		}
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := offlineConfig.Validate(); err != nil {
		return err
	}

	// Log lines would corrupt the alt screen; route them into the event log
	events := newEventWriter()
	logger = zerolog.New(zerolog.ConsoleWriter{Out: events, NoColor: true, TimeFormat: time.TimeOnly}).
		Level(logger.GetLevel()).
		With().
		Timestamp().
		Logger()

	var p *tea.Program
	cfg := offlineConfig
	h, err := openHub(hubOptions{
		offline: &cfg,
		onReport: func(nodeID uint8, r zwave.Report) {
			p.Send(monitorReportMsg{nodeID: nodeID, report: r})
		},
	})
	if err != nil {
		return err
	}

	p = tea.NewProgram(newMonitorModel(h), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go events.forward(ctx, p)

	go func() {
		if err := h.start(ctx); err != nil {
			p.Send(monitorLogMsg(err.Error()))
			return
		}
		p.Send(readerDoneMsg{err: <-h.readerDone})
	}()

	_, runErr := p.Run()
	cancel()

	if err := h.close(); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}
