// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/zwavectl/pkg/transport"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

var learnCmd = &cobra.Command{
	Use:   "learn <classic|nwi|disable>",
	Short: "Set the controller's learn mode",
	Long: `Send LEARN_MODE_SET so the controller can itself be included in another
network.

  classic   direct range only
  nwi       network-wide inclusion
  disable   leave learn mode`,
	Args: cobra.ExactArgs(1),
	RunE: runLearn,
}

var nifCmd = &cobra.Command{
	Use:   "nif",
	Short: "Broadcast the controller's node information frame",
	Long: `Send NODE_INFORMATION_SEND to the broadcast address without routing, so only
nodes in direct range hear it.`,
	Args: cobra.NoArgs,
	RunE: runNIF,
}

func init() {
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(nifCmd)
}

func runLearn(cmd *cobra.Command, args []string) error {
	mode, err := zwave.ParseLearnMode(args[0])
	if err != nil {
		return err
	}
	return sendOnce(zwave.GatewayNodeID, zwave.NewBuilder(nil).LearnModeSet(mode))
}

func runNIF(cmd *cobra.Command, args []string) error {
	return sendOnce(zwave.BroadcastNodeID, zwave.NewBuilder(nil).NodeInfoSend())
}

// sendOnce opens a connection, sends a single command and closes it
func sendOnce(nodeID uint8, command zwave.Command) error {
	conn, connInfo, err := transport.Open(connectionOptions())
	if err != nil {
		return err
	}
	defer conn.Close()

	c := transport.NewController(transport.ControllerParams{Conn: conn, Logger: logger})
	if err := c.Send(nodeID, command); err != nil {
		return err
	}

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Sent %s to node %d: %s\n", zwave.FormatCommand(command), nodeID, zwave.FormatCommandBytes(command.Bytes()))
	return nil
}
