// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// zwavectl - Z-Wave hub controller
//
// Drives a Z-Wave controller stick over the Serial API: node liveness
// tracking, inclusion and exclusion, and raw frame logging.

package main

import (
	"os"

	"github.com/Thermoquad/zwavectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
