// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")

	if f.IsControl() {
		return fmt.Sprintf("[%s] %s\n", timestamp, FormatControl(f.control))
	}

	dir := "REQ"
	if f.frameType == FrameTypeResponse {
		dir = "RES"
	}

	result := fmt.Sprintf("[%s] %s %s (0x%02X) len=%d\n", timestamp, dir, FormatFuncID(f.funcID), f.funcID, f.Length())

	switch {
	case f.funcID == FuncApplicationCommandHandler:
		if ac, ok := f.ApplicationCommand(); ok {
			result += fmt.Sprintf("  From node %d (rx=0x%02X)\n", ac.SourceID, ac.RxStatus)
			result += "  " + FormatCommandBytes(ac.Command) + "\n"
			return result
		}
	case f.funcID == FuncSendData && f.frameType == FrameTypeRequest && len(f.payload) >= 2:
		n := int(f.payload[1])
		if 2+n+2 <= len(f.payload) {
			result += fmt.Sprintf("  To node %d tx=0x%02X callback=%d\n", f.payload[0], f.payload[2+n], f.payload[3+n])
			result += "  " + FormatCommandBytes(f.payload[2:2+n]) + "\n"
			return result
		}
	}

	if len(f.payload) > 0 {
		result += "  Payload: " + formatHex(f.payload) + "\n"
	}
	return result
}

// FormatControl returns the name of a single-byte control frame
func FormatControl(b byte) string {
	switch b {
	case ACK:
		return "ACK"
	case NAK:
		return "NAK"
	case CAN:
		return "CAN"
	default:
		return "UNKNOWN"
	}
}

// FormatFuncID returns the human-readable name for a Serial API function id
func FormatFuncID(funcID uint8) string {
	switch funcID {
	case FuncGetInitData:
		return "GET_INIT_DATA"
	case FuncApplicationCommandHandler:
		return "APPLICATION_COMMAND_HANDLER"
	case FuncGetControllerCapabilities:
		return "GET_CONTROLLER_CAPABILITIES"
	case FuncSerialAPIStarted:
		return "SERIAL_API_STARTED"
	case FuncSendData:
		return "SEND_DATA"
	case FuncGetVersion:
		return "GET_VERSION"
	default:
		return "UNKNOWN"
	}
}

// FormatCommandName returns the human-readable name for a command class and id
func FormatCommandName(class uint8, id uint8) string {
	switch class {
	case ClassBasic:
		switch id {
		case CmdBasicSet:
			return "BASIC_SET"
		case CmdBasicGet:
			return "BASIC_GET"
		case CmdBasicReport:
			return "BASIC_REPORT"
		}
	case ClassNetworkManagementInclude:
		switch id {
		case CmdNodeAdd:
			return "NODE_ADD"
		case CmdNodeAddStatus:
			return "NODE_ADD_STATUS"
		case CmdNodeRemove:
			return "NODE_REMOVE"
		case CmdNodeRemoveStatus:
			return "NODE_REMOVE_STATUS"
		case CmdFailedNodeRemove:
			return "FAILED_NODE_REMOVE"
		}
	case ClassNetworkManagementBasic:
		switch id {
		case CmdLearnModeSet:
			return "LEARN_MODE_SET"
		case CmdLearnModeSetStatus:
			return "LEARN_MODE_SET_STATUS"
		case CmdNodeInfoSend:
			return "NODE_INFORMATION_SEND"
		}
	case ClassNetworkManagementProxy:
		switch id {
		case CmdNodeListGet:
			return "NODE_LIST_GET"
		case CmdNodeListReport:
			return "NODE_LIST_REPORT"
		}
	case ClassManufacturerSpecific:
		switch id {
		case CmdManufacturerSpecificGet:
			return "MANUFACTURER_SPECIFIC_GET"
		case CmdManufacturerSpecificReport:
			return "MANUFACTURER_SPECIFIC_REPORT"
		}
	case ClassAssociation:
		switch id {
		case CmdAssociationSet:
			return "ASSOCIATION_SET"
		case CmdAssociationGroupingsGet:
			return "ASSOCIATION_GROUPINGS_GET"
		case CmdAssociationGroupingsReport:
			return "ASSOCIATION_GROUPINGS_REPORT"
		}
	}
	return fmt.Sprintf("CMD_%02X_%02X", class, id)
}

// FormatCommand formats an outbound command
func FormatCommand(cmd Command) string {
	return FormatCommandBytes(cmd.Bytes())
}

// FormatCommandBytes formats a command-class frame as name plus parameters
func FormatCommandBytes(data []byte) string {
	if len(data) < 2 {
		return "Command: " + formatHex(data)
	}
	result := FormatCommandName(data[0], data[1])
	if len(data) > 2 {
		result += " " + formatHex(data[2:])
	}
	return result
}

// formatHex renders bytes as space-separated hex pairs
func formatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
