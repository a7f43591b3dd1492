// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/zwavectl/pkg/transport"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

var (
	showAll       bool
	statsInterval time.Duration
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and count corrupted frames on the link",
	Long: `Track checksum failures, malformed frames and retransmit requests with
statistics.

This command decodes each frame and reports:
  - Checksum errors and decode failures
  - NAK and CAN frames from the controller
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.
Decode errors before the first valid frame are counted as sync noise.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().DurationVar(&statsInterval, "stats-interval", 10*time.Second, "Statistics update interval")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := transport.Open(connectionOptions())
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("zwavectl - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %v\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Channel for non-blocking reads
	readBuf := make(chan []byte, 10)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, transport.ErrConnectionClosed) || ctx.Err() != nil {
					close(readBuf)
					return
				}
				logger.Warn().Err(err).Msg("Read error")
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			readBuf <- data
		}
	}()

	decoder := zwave.NewDecoder()
	stats := zwave.NewStatistics(time.Now())

	// Sync tracking - ignore decode errors until first valid frame
	synchronized := false
	invalidBytesBeforeSync := 0

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case data, ok := <-readBuf:
			if !ok {
				fmt.Printf("\nConnection closed\n\n")
				fmt.Print(stats.Summary(time.Now()))
				return nil
			}
			for _, b := range data {
				f, decodeErr := decoder.DecodeByte(b)
				switch {
				case decodeErr != nil && !synchronized:
					invalidBytesBeforeSync++
				case decodeErr != nil:
					stats.Update(nil, decodeErr, time.Now())
					printDecodeError(decodeErr)
				case f != nil:
					if !synchronized {
						synchronized = true
						if invalidBytesBeforeSync > 0 {
							fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", invalidBytesBeforeSync)
						} else {
							fmt.Printf("[SYNC] Synchronized\n\n")
						}
					}
					stats.Update(f, nil, time.Now())
					if showAll || (f.IsControl() && f.Control() != zwave.ACK) {
						fmt.Print(zwave.FormatFrame(f))
					}
				}
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.Summary(time.Now()))
			fmt.Println()

		case <-ctx.Done():
			conn.Close()
			fmt.Println()
			fmt.Print(stats.Summary(time.Now()))
			return nil
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}
