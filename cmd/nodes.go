// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/zwavectl/pkg/network"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List nodes in the registry snapshot",
	Long: `Print every node saved in the --nodes snapshot with its identity and last
known liveness. Does not open a connection.`,
	Args: cobra.NoArgs,
	RunE: runNodes,
}

var nodesTimeoutCmd = &cobra.Command{
	Use:   "timeout <node> <seconds>",
	Short: "Set a node's offline timeout in the snapshot",
	Long: `Set the device-specific silence allowance for a node and save the --nodes
snapshot. The offline engine uses the larger of this value and its adaptive
floor. A value of 0 clears the override.`,
	Args: cobra.ExactArgs(2),
	RunE: runNodesTimeout,
}

func init() {
	nodesCmd.AddCommand(nodesTimeoutCmd)
	rootCmd.AddCommand(nodesCmd)
}

func runNodesTimeout(cmd *cobra.Command, args []string) error {
	id, d, err := parseNodeTimeout(args)
	if err != nil {
		return err
	}
	if err := setNodeTimeout(nodesPath, id, d); err != nil {
		return err
	}
	fmt.Printf("Node %d offline timeout set to %v\n", id, d)
	return nil
}

// parseNodeTimeout parses "<node> <seconds>"
func parseNodeTimeout(args []string) (uint8, time.Duration, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("want <node> <seconds>, got %d fields", len(args))
	}
	node, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil || node == 0 || node > uint64(zwave.MaxNodeID) {
		return 0, 0, fmt.Errorf("invalid node id %q", args[0])
	}
	secs, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid timeout %q", args[1])
	}
	return uint8(node), time.Duration(secs) * time.Second, nil
}

// setNodeTimeout updates one node's offline timeout in the snapshot at path
func setNodeTimeout(path string, id uint8, d time.Duration) error {
	registry := network.NewRegistry()
	if err := registry.LoadSnapshot(path); err != nil {
		return err
	}
	n, ok := registry.Node(id)
	if !ok {
		return fmt.Errorf("node %d not in %s", id, path)
	}
	n.SetOfflineTimeout(d)
	return registry.SaveSnapshot(path)
}

func runNodes(cmd *cobra.Command, args []string) error {
	registry := network.NewRegistry()
	if err := registry.LoadSnapshot(nodesPath); err != nil {
		return err
	}

	nodes := registry.Nodes()
	if len(nodes) == 0 {
		fmt.Printf("No nodes in %s\n", nodesPath)
		return nil
	}

	fmt.Print(formatNodeTable(nodes, time.Now()))
	return nil
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	onlineStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offlineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// formatNodeTable renders one line per node
func formatNodeTable(nodes []*network.Node, now time.Time) string {
	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-5s %-8s %-7s %-14s %-8s %s", "NODE", "STATE", "STRIKES", "LAST HEARD", "KIND", "PRODUCT")))
	b.WriteString("\n")
	for _, n := range nodes {
		b.WriteString(formatNodeRow(n, now))
		b.WriteString("\n")
	}
	return b.String()
}

func formatNodeRow(n *network.Node, now time.Time) string {
	live := n.Liveness()
	info := n.Info()

	state := onlineStyle.Render(fmt.Sprintf("%-8s", "online"))
	if !live.Online {
		state = offlineStyle.Render(fmt.Sprintf("%-8s", "offline"))
	}

	return fmt.Sprintf("%-5d %s %-7d %-14s %-8s %04X:%04X:%04X",
		n.ID(), state, live.Strikes, formatSince(live.LastCall, now), nodeKind(n),
		info.ManufacturerID, info.ProductTypeID, info.ProductID)
}

func nodeKind(n *network.Node) string {
	switch {
	case n.IsGateway():
		return "gateway"
	case n.IsWakeupDevice():
		return "sleepy"
	default:
		return "listening"
	}
}

// formatSince renders how long ago t was, coarsely
func formatSince(t time.Time, now time.Time) string {
	if t.IsZero() || t.UnixMilli() == 0 {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
