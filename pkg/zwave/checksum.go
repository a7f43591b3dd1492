// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

// CalculateChecksum computes the Serial API checksum: 0xFF XOR every byte
// from LEN through the last payload byte
func CalculateChecksum(data []byte) uint8 {
	sum := uint8(checksumInitial)
	for _, b := range data {
		sum ^= b
	}
	return sum
}
