// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/zwavectl/pkg/network"
)

func TestParseNodeTimeout(t *testing.T) {
	tests := []struct {
		args     []string
		wantNode uint8
		want     time.Duration
		wantErr  bool
	}{
		{[]string{"12", "7200"}, 12, 2 * time.Hour, false},
		{[]string{"232", "0"}, 232, 0, false},
		{[]string{"12"}, 0, 0, true},
		{[]string{"0", "60"}, 0, 0, true},
		{[]string{"233", "60"}, 0, 0, true},
		{[]string{"12", "soon"}, 0, 0, true},
		{[]string{"12", "4294967296"}, 0, 0, true},
	}

	for _, tt := range tests {
		node, d, err := parseNodeTimeout(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseNodeTimeout(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if node != tt.wantNode || d != tt.want {
			t.Errorf("parseNodeTimeout(%v) = %d, %v, want %d, %v", tt.args, node, d, tt.wantNode, tt.want)
		}
	}
}

func TestSetNodeTimeout_SavesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.cbor")
	r := network.NewRegistry()
	r.Add(network.NewNode(network.NodeInfo{ID: 1}))
	r.Add(network.NewNode(network.NodeInfo{ID: 9}))
	if err := r.SaveSnapshot(path); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if err := setNodeTimeout(path, 9, 90*time.Minute); err != nil {
		t.Fatalf("setNodeTimeout() error = %v", err)
	}

	loaded := network.NewRegistry()
	if err := loaded.LoadSnapshot(path); err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	n, ok := loaded.Node(9)
	if !ok {
		t.Fatal("node 9 missing after save")
	}
	if got := n.OfflineTimeout(); got != 90*time.Minute {
		t.Errorf("OfflineTimeout() = %v, want 1h30m", got)
	}
	if loaded.Len() != 2 {
		t.Errorf("Len() = %d, want 2", loaded.Len())
	}

	if err := setNodeTimeout(path, 9, 0); err != nil {
		t.Fatalf("setNodeTimeout(0) error = %v", err)
	}
	cleared := network.NewRegistry()
	if err := cleared.LoadSnapshot(path); err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if n, _ := cleared.Node(9); n.OfflineTimeout() != 0 {
		t.Errorf("OfflineTimeout() = %v after clear, want 0", n.OfflineTimeout())
	}
}

func TestSetNodeTimeout_UnknownNode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.cbor")
	r := network.NewRegistry()
	r.Add(network.NewNode(network.NodeInfo{ID: 1}))
	if err := r.SaveSnapshot(path); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if err := setNodeTimeout(path, 42, time.Minute); err == nil {
		t.Error("setNodeTimeout() error = nil for missing node")
	}
}
