// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package offline

import (
	"fmt"
	"time"
)

// Default tuning
const (
	DefaultBasePeriod                = 60 * time.Second
	DefaultMinOfflineTimeout         = 10 * time.Minute
	DefaultIncreaseFloor             = 5
	DefaultMeteringIncrease          = 5 * time.Second
	DefaultMinOfflineTimeoutIncrease = 30 * time.Second
	DefaultBasePollingDelay          = 1 * time.Second
	DefaultPollingDelayIncrease      = 250 * time.Millisecond
	DefaultStrikeThreshold           = 3
)

// Config tunes the offline detection cycle.
type Config struct {
	BasePeriod                time.Duration // Delay between cycles with a small queue
	MinOfflineTimeout         time.Duration // Baseline silence before a node is suspected
	IncreaseFloor             int           // Queue size above which timings stretch
	MeteringIncrease          time.Duration // Added to the cycle delay per node above the floor
	MinOfflineTimeoutIncrease time.Duration // Added to the silence floor per node above the floor
	BasePollingDelay          time.Duration // Spacing between probes
	PollingDelayIncrease      time.Duration // Added to probe spacing per node above the floor
	StrikeThreshold           uint32        // Strikes tolerated before a probed node goes offline
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		BasePeriod:                DefaultBasePeriod,
		MinOfflineTimeout:         DefaultMinOfflineTimeout,
		IncreaseFloor:             DefaultIncreaseFloor,
		MeteringIncrease:          DefaultMeteringIncrease,
		MinOfflineTimeoutIncrease: DefaultMinOfflineTimeoutIncrease,
		BasePollingDelay:          DefaultBasePollingDelay,
		PollingDelayIncrease:      DefaultPollingDelayIncrease,
		StrikeThreshold:           DefaultStrikeThreshold,
	}
}

// Validate rejects tunings that would stall or spin the cycle.
func (c Config) Validate() error {
	if c.BasePeriod <= 0 {
		return fmt.Errorf("base period must be positive, got %v", c.BasePeriod)
	}
	if c.IncreaseFloor < 0 {
		return fmt.Errorf("increase floor must not be negative, got %d", c.IncreaseFloor)
	}
	if c.MeteringIncrease < 0 || c.MinOfflineTimeoutIncrease < 0 || c.PollingDelayIncrease < 0 {
		return fmt.Errorf("increases must not be negative")
	}
	if c.MinOfflineTimeout < 0 || c.BasePollingDelay < 0 {
		return fmt.Errorf("timeouts and delays must not be negative")
	}
	return nil
}

// Timings are the adaptive parameters derived from one cycle's queue size.
type Timings struct {
	NextCheckDelay        time.Duration
	MinimumOfflineTimeout time.Duration
	PerProbeDelay         time.Duration
}

// Timings computes the adaptive parameters for a queue of the given size.
// The cycle delay and probe spacing never drop below their baselines. The
// silence floor is not clamped, so a short queue lowers it below
// MinOfflineTimeout.
func (c Config) Timings(queueSize int) Timings {
	excess := queueSize - c.IncreaseFloor
	clamped := max(0, excess)
	return Timings{
		NextCheckDelay:        c.BasePeriod + time.Duration(clamped)*c.MeteringIncrease,
		MinimumOfflineTimeout: c.MinOfflineTimeout + time.Duration(excess)*c.MinOfflineTimeoutIncrease,
		PerProbeDelay:         c.BasePollingDelay + time.Duration(clamped)*c.PollingDelayIncrease,
	}
}

// ConfigProvider supplies the tuning; it is read at the start of every cycle.
type ConfigProvider interface {
	OfflineConfig() Config
}

// StaticConfig is a ConfigProvider that never changes.
type StaticConfig Config

func (c StaticConfig) OfflineConfig() Config { return Config(c) }
