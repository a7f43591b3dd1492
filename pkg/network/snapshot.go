// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package network

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// snapshotVersion is bumped when the record layout changes
const snapshotVersion = 1

// nodeRecord is the on-disk form of one node, keyed by small integers
type nodeRecord struct {
	ID             uint8   `cbor:"0,keyasint"`
	BasicClass     uint8   `cbor:"1,keyasint"`
	GenericClass   uint8   `cbor:"2,keyasint"`
	SpecificClass  uint8   `cbor:"3,keyasint"`
	CommandClasses []uint8 `cbor:"4,keyasint,omitempty"`
	ManufacturerID uint16  `cbor:"5,keyasint"`
	ProductTypeID  uint16  `cbor:"6,keyasint"`
	ProductID      uint16  `cbor:"7,keyasint"`
	Online         bool    `cbor:"8,keyasint"`
	LastCallMillis int64   `cbor:"9,keyasint"`
	OfflineTimeout uint32  `cbor:"10,keyasint"` // seconds
}

type snapshot struct {
	Version uint8        `cbor:"0,keyasint"`
	Nodes   []nodeRecord `cbor:"1,keyasint"`
}

// MarshalSnapshot encodes every node in the registry as CBOR.
func (r *Registry) MarshalSnapshot() ([]byte, error) {
	snap := snapshot{Version: snapshotVersion}
	for _, n := range r.Nodes() {
		info := n.Info()
		live := n.Liveness()
		rec := nodeRecord{
			ID:             info.ID,
			BasicClass:     info.BasicClass,
			GenericClass:   info.GenericClass,
			SpecificClass:  info.SpecificClass,
			CommandClasses: info.CommandClasses,
			ManufacturerID: info.ManufacturerID,
			ProductTypeID:  info.ProductTypeID,
			ProductID:      info.ProductID,
			Online:         live.Online,
			OfflineTimeout: uint32(live.OfflineTimeout / time.Second),
		}
		if !live.LastCall.IsZero() {
			rec.LastCallMillis = live.LastCall.UnixMilli()
		}
		snap.Nodes = append(snap.Nodes, rec)
	}

	data, err := cbor.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot adds every node in data to the registry. Strikes are not
// persisted and start at zero.
func (r *Registry) UnmarshalSnapshot(data []byte) error {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	for _, rec := range snap.Nodes {
		n := NewNode(NodeInfo{
			ID:             rec.ID,
			BasicClass:     rec.BasicClass,
			GenericClass:   rec.GenericClass,
			SpecificClass:  rec.SpecificClass,
			CommandClasses: rec.CommandClasses,
			ManufacturerID: rec.ManufacturerID,
			ProductTypeID:  rec.ProductTypeID,
			ProductID:      rec.ProductID,
		})
		live := Liveness{
			Online:         rec.Online,
			OfflineTimeout: time.Duration(rec.OfflineTimeout) * time.Second,
		}
		if rec.LastCallMillis != 0 {
			live.LastCall = time.UnixMilli(rec.LastCallMillis)
		}
		n.restore(live)
		r.Add(n)
	}
	return nil
}

// LoadSnapshot reads a snapshot file into the registry. A missing file is
// not an error.
func (r *Registry) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return r.UnmarshalSnapshot(data)
}

// SaveSnapshot writes the registry atomically via a temporary file.
func (r *Registry) SaveSnapshot(path string) error {
	data, err := r.MarshalSnapshot()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
