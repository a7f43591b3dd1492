// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package offline

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Task is a handle to a scheduled one-shot run.
type Task interface {
	// Cancel prevents the run if it has not started. It reports whether the
	// run was stopped.
	Cancel() bool
}

// Scheduler runs a function once after a delay.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, fn func()) Task
}

// ClockScheduler schedules on a clock's timers. Each run happens on its own
// timer goroutine.
type ClockScheduler struct {
	clock clock.Clock
}

// NewClockScheduler creates a scheduler backed by c, or the wall clock if nil.
func NewClockScheduler(c clock.Clock) *ClockScheduler {
	if c == nil {
		c = clock.New()
	}
	return &ClockScheduler{clock: c}
}

func (s *ClockScheduler) ScheduleOnce(delay time.Duration, fn func()) Task {
	return &timerTask{timer: s.clock.AfterFunc(delay, fn)}
}

type timerTask struct {
	timer *clock.Timer
}

func (t *timerTask) Cancel() bool { return t.timer.Stop() }
