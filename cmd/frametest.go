// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/zwavectl/pkg/transport"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

var frameTestTimeout time.Duration

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid Serial API frame",
	Long: `Wait for a valid Serial API frame on the connection until timeout.

Bytes that do not form a frame with a correct checksum are skipped. Control
bytes (ACK, NAK, CAN) count as frames.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().DurationVar(&frameTestTimeout, "timeout", 10*time.Second, "How long to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := transport.Open(connectionOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("zwavectl - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %v\n", frameTestTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	frameChan := make(chan *zwave.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		decoder := zwave.NewDecoder()
		buf := make([]byte, 128)
		invalidBytes := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				f, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					invalidBytes++
					continue
				}
				if f != nil {
					if invalidBytes > 0 {
						fmt.Printf("(skipped %d invalid bytes before sync)\n", invalidBytes)
					}
					frameChan <- f
					return
				}
			}
		}
	}()

	select {
	case f := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Print(zwave.FormatFrame(f))
		return nil

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(frameTestTimeout):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %v\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
