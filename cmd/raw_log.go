// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/zwavectl/pkg/transport"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display Serial API frames as they arrive.

Each frame is shown with timestamp, function and, for application commands,
the source node and decoded command. Data frames are acknowledged so the
controller does not retransmit them.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := transport.Open(connectionOptions())
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("zwavectl - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := transport.NewController(transport.ControllerParams{
		Conn: conn,
		OnFrame: func(f *zwave.Frame) {
			fmt.Print(zwave.FormatFrame(f))
		},
		Logger: logger,
	})

	// Reads block; closing the connection ends the loop on Ctrl+C
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return c.ReadLoop(ctx)
}
