// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/zwavectl/internal/telemetry"
	"github.com/Thermoquad/zwavectl/pkg/offline"
)

var (
	offlineConfig = offline.DefaultConfig()
	metricsAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller with offline detection",
	Long: `Connect to the controller, track every paired node and mark nodes offline
when they stop answering.

Silent nodes are probed with BASIC_GET once per cycle. The cycle period, the
minimum silence before probing and the spacing between probes all grow with
the number of nodes being probed so the radio channel is never saturated.

The node registry is loaded from --nodes at start and saved on exit.`,
	RunE: runServe,
}

func init() {
	addOfflineFlags(serveCmd)
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	rootCmd.AddCommand(serveCmd)
}

// addOfflineFlags binds the offline detection tuning to cmd
func addOfflineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.DurationVar(&offlineConfig.BasePeriod, "base-period", offline.DefaultBasePeriod, "Delay between offline checks")
	f.DurationVar(&offlineConfig.MinOfflineTimeout, "min-offline-timeout", offline.DefaultMinOfflineTimeout, "Minimum silence before a node is probed")
	f.IntVar(&offlineConfig.IncreaseFloor, "increase-floor", offline.DefaultIncreaseFloor, "Probe queue size above which timings stretch")
	f.DurationVar(&offlineConfig.MeteringIncrease, "metering-increase", offline.DefaultMeteringIncrease, "Check delay added per queued node above the floor")
	f.DurationVar(&offlineConfig.MinOfflineTimeoutIncrease, "min-offline-timeout-increase", offline.DefaultMinOfflineTimeoutIncrease, "Minimum silence added per queued node above the floor")
	f.DurationVar(&offlineConfig.BasePollingDelay, "polling-delay", offline.DefaultBasePollingDelay, "Delay between probes")
	f.DurationVar(&offlineConfig.PollingDelayIncrease, "polling-delay-increase", offline.DefaultPollingDelayIncrease, "Probe delay added per queued node above the floor")
	f.Uint32Var(&offlineConfig.StrikeThreshold, "strike-threshold", offline.DefaultStrikeThreshold, "Unanswered cycles before a probed node is marked offline")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := offlineConfig.Validate(); err != nil {
		return err
	}

	h, err := openHub(hubOptions{offline: &offlineConfig})
	if err != nil {
		return err
	}

	telemetry.SetBuildInfo(version)
	var metricsServer *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler())
		metricsServer = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("connection", h.connInfo).
		Int("nodes", len(h.registry.NonGatewayNodes())).
		Msg("Controller started")

	if err := h.start(ctx); err != nil {
		h.close()
		return err
	}

	var readErr error
	select {
	case <-ctx.Done():
	case readErr = <-h.readerDone:
		logger.Warn().Msg("Connection lost")
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
	}

	if err := h.close(); err != nil {
		return err
	}
	if readErr != nil {
		return fmt.Errorf("read loop: %w", readErr)
	}
	return nil
}
