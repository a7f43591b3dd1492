// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

var sendCmd = &cobra.Command{
	Use:   "send <node> <class> <command> [payload-hex]",
	Short: "Send a raw command to a node",
	Long: `Wrap an arbitrary command class command and send it to a node.

Class and command are hex bytes; the optional payload is a hex string.

Examples:
  zwavectl send 5 20 02          BASIC_GET
  zwavectl send 5 20 01 FF       BASIC_SET on
  zwavectl send 7 70 04 0301FF   CONFIGURATION_SET`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	command, nodeID, err := parseRawCommand(args)
	if err != nil {
		return err
	}
	return sendOnce(nodeID, command)
}

// parseRawCommand turns "<node> <class> <command> [payload]" into a command
func parseRawCommand(args []string) (zwave.RawBytes, uint8, error) {
	if len(args) < 3 || len(args) > 4 {
		return zwave.RawBytes{}, 0, fmt.Errorf("want <node> <class> <command> [payload], got %d fields", len(args))
	}

	node, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil || node == 0 || node > uint64(zwave.MaxNodeID) {
		return zwave.RawBytes{}, 0, fmt.Errorf("invalid node id %q", args[0])
	}
	class, err := strconv.ParseUint(args[1], 16, 8)
	if err != nil {
		return zwave.RawBytes{}, 0, fmt.Errorf("invalid command class %q", args[1])
	}
	id, err := strconv.ParseUint(args[2], 16, 8)
	if err != nil {
		return zwave.RawBytes{}, 0, fmt.Errorf("invalid command %q", args[2])
	}

	var payload []byte
	if len(args) == 4 {
		payload, err = hex.DecodeString(strings.TrimPrefix(args[3], "0x"))
		if err != nil {
			return zwave.RawBytes{}, 0, fmt.Errorf("invalid payload: %w", err)
		}
	}
	if 2+len(payload) > zwave.MaxCommandSize {
		return zwave.RawBytes{}, 0, fmt.Errorf("payload too large: %d bytes", len(payload))
	}

	return zwave.NewRawBytes(uint8(class), uint8(id), payload), uint8(node), nil
}
