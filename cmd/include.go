// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/zwavectl/pkg/inclusion"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

var pairingTimeout time.Duration

var includeCmd = &cobra.Command{
	Use:   "include",
	Short: "Add a node to the network",
	Long: `Put the controller in add mode and interview the first node that joins.

Press the inclusion button on the device after starting. Once the controller
reports the node added, its manufacturer ids and association groupings are
requested and every group is associated with the controller. Add mode stops
after --timeout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPairing(inclusion.StateAdding)
	},
}

var excludeCmd = &cobra.Command{
	Use:   "exclude",
	Short: "Remove a node from the network",
	Long: `Put the controller in remove mode until a node leaves or --timeout passes.

Press the exclusion button on the device after starting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPairing(inclusion.StateRemoving)
	},
}

func init() {
	for _, c := range []*cobra.Command{includeCmd, excludeCmd} {
		c.Flags().DurationVarP(&pairingTimeout, "timeout", "t", time.Minute, "Stop after this long")
		rootCmd.AddCommand(c)
	}
}

func runPairing(mode inclusion.State) error {
	// Completed when the controller reports the node added or removed
	finished := make(chan zwave.Report, 1)
	finish := func(r zwave.Report) {
		select {
		case finished <- r:
		default:
		}
	}
	onReport := func(nodeID uint8, r zwave.Report) {
		switch r := r.(type) {
		case zwave.ManufacturerSpecificReport, zwave.NodeRemoveStatus:
			finish(r)
		case zwave.NodeAddStatus:
			if !r.Done() && r.Status != zwave.AddStatusLearnReady && r.Status != zwave.AddStatusNodeFound {
				finish(r)
			}
		}
	}

	h, err := openHub(hubOptions{onReport: onReport})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := h.start(ctx); err != nil {
		h.close()
		return err
	}

	if mode == inclusion.StateAdding {
		err = h.pairing.StartPairing(pairingTimeout)
	} else {
		err = h.pairing.StartRemoval(pairingTimeout)
	}
	if err != nil {
		h.close()
		return err
	}

	fmt.Printf("zwavectl - %s\n", mode)
	fmt.Printf("Connection: %s\n", h.connInfo)
	fmt.Printf("Waiting up to %v, press Ctrl+C to cancel\n\n", pairingTimeout)

	// The interview sends association sets after the manufacturer report;
	// give them a moment to go out before closing
	settle := 2 * time.Second
	deadline := time.After(pairingTimeout + settle)

	var result error
	select {
	case r := <-finished:
		result = describeResult(r)
		time.Sleep(settle)
	case <-deadline:
		result = fmt.Errorf("%s timed out", mode)
	case <-ctx.Done():
		result = fmt.Errorf("%s cancelled", mode)
	}

	if h.pairing.State() == mode {
		if mode == inclusion.StateAdding {
			h.pairing.StopPairing()
		} else {
			h.pairing.StopRemoval()
		}
	}

	if err := h.close(); err != nil {
		return err
	}
	return result
}

func describeResult(r zwave.Report) error {
	switch r := r.(type) {
	case zwave.ManufacturerSpecificReport:
		fmt.Printf("Node added: manufacturer %04X product %04X:%04X\n", r.ManufacturerID, r.ProductTypeID, r.ProductID)
		return nil
	case zwave.NodeRemoveStatus:
		if r.Done() {
			fmt.Printf("Node %d removed\n", r.NodeID)
			return nil
		}
		return fmt.Errorf("removal failed (status 0x%02X)", r.Status)
	case zwave.NodeAddStatus:
		return fmt.Errorf("inclusion failed (status 0x%02X)", r.Status)
	}
	return nil
}
