// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

import "fmt"

// Report is a decoded inbound command
type Report interface {
	Class() uint8
	ID() uint8
}

// NodeAddStatus is NODE_ADD_STATUS (0x34 0x02)
type NodeAddStatus struct {
	Seq            SequenceNumber
	Status         uint8
	NodeID         uint8
	BasicClass     uint8
	GenericClass   uint8
	SpecificClass  uint8
	CommandClasses []uint8
}

func (r NodeAddStatus) Class() uint8 { return ClassNetworkManagementInclude }
func (r NodeAddStatus) ID() uint8    { return CmdNodeAddStatus }

// Done reports whether the node was included
func (r NodeAddStatus) Done() bool {
	return r.Status == AddStatusDone
}

// NodeRemoveStatus is NODE_REMOVE_STATUS (0x34 0x04)
type NodeRemoveStatus struct {
	Seq    SequenceNumber
	Status uint8
	NodeID uint8
}

func (r NodeRemoveStatus) Class() uint8 { return ClassNetworkManagementInclude }
func (r NodeRemoveStatus) ID() uint8    { return CmdNodeRemoveStatus }

// Done reports whether the node was excluded
func (r NodeRemoveStatus) Done() bool {
	return r.Status == RemoveStatusDone
}

// ManufacturerSpecificReport is MANUFACTURER_SPECIFIC_REPORT (0x72 0x05)
type ManufacturerSpecificReport struct {
	ManufacturerID uint16
	ProductTypeID  uint16
	ProductID      uint16
}

func (r ManufacturerSpecificReport) Class() uint8 { return ClassManufacturerSpecific }
func (r ManufacturerSpecificReport) ID() uint8    { return CmdManufacturerSpecificReport }

// AssociationGroupingsReport is ASSOCIATION_GROUPINGS_REPORT (0x85 0x06)
type AssociationGroupingsReport struct {
	SupportedGroupings uint8
}

func (r AssociationGroupingsReport) Class() uint8 { return ClassAssociation }
func (r AssociationGroupingsReport) ID() uint8    { return CmdAssociationGroupingsReport }

// BasicReport is BASIC_REPORT (0x20 0x03), the answer to a probe
type BasicReport struct {
	Value uint8
}

func (r BasicReport) Class() uint8 { return ClassBasic }
func (r BasicReport) ID() uint8    { return CmdBasicReport }

// ParseReport decodes a command-class frame into a typed report.
// Frames for commands this package does not model are returned as RawBytes.
func ParseReport(data []byte) (Report, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("command too short: %d bytes", len(data))
	}

	class, cmd, params := data[0], data[1], data[2:]

	switch {
	case class == ClassNetworkManagementInclude && cmd == CmdNodeAddStatus:
		return parseNodeAddStatus(params)
	case class == ClassNetworkManagementInclude && cmd == CmdNodeRemoveStatus:
		if len(params) < 3 {
			return nil, fmt.Errorf("NODE_REMOVE_STATUS too short: %d bytes", len(params))
		}
		return NodeRemoveStatus{Seq: SequenceNumber(params[0]), Status: params[1], NodeID: params[2]}, nil
	case class == ClassManufacturerSpecific && cmd == CmdManufacturerSpecificReport:
		if len(params) < 6 {
			return nil, fmt.Errorf("MANUFACTURER_SPECIFIC_REPORT too short: %d bytes", len(params))
		}
		return ManufacturerSpecificReport{
			ManufacturerID: uint16(params[0])<<8 | uint16(params[1]),
			ProductTypeID:  uint16(params[2])<<8 | uint16(params[3]),
			ProductID:      uint16(params[4])<<8 | uint16(params[5]),
		}, nil
	case class == ClassAssociation && cmd == CmdAssociationGroupingsReport:
		if len(params) < 1 {
			return nil, fmt.Errorf("ASSOCIATION_GROUPINGS_REPORT too short")
		}
		return AssociationGroupingsReport{SupportedGroupings: params[0]}, nil
	case class == ClassBasic && cmd == CmdBasicReport:
		if len(params) < 1 {
			return nil, fmt.Errorf("BASIC_REPORT too short")
		}
		return BasicReport{Value: params[0]}, nil
	}

	return NewRawBytes(class, cmd, params), nil
}

// parseNodeAddStatus decodes
// [seq, status, reserved, nodeId, nifLen, capability, security, basic, generic, specific, classes...]
func parseNodeAddStatus(params []byte) (NodeAddStatus, error) {
	if len(params) < 4 {
		return NodeAddStatus{}, fmt.Errorf("NODE_ADD_STATUS too short: %d bytes", len(params))
	}

	r := NodeAddStatus{
		Seq:    SequenceNumber(params[0]),
		Status: params[1],
		NodeID: params[3],
	}

	// Failure statuses carry no node information
	if len(params) < 10 {
		return r, nil
	}

	nifLen := int(params[4])
	r.BasicClass = params[7]
	r.GenericClass = params[8]
	r.SpecificClass = params[9]

	// nifLen counts itself and the five fixed bytes that follow it
	end := 4 + nifLen
	if end > len(params) {
		end = len(params)
	}
	if end > 10 {
		r.CommandClasses = append([]uint8(nil), params[10:end]...)
	}

	return r, nil
}
