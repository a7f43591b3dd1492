// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/zwavectl/pkg/inclusion"
	"github.com/Thermoquad/zwavectl/pkg/network"
	"github.com/Thermoquad/zwavectl/pkg/zwave"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	monitorRefresh    = time.Second
	maxMonitorEvents  = 100
	defaultPairWindow = time.Minute
)

// Focus states
const (
	focusNodeList = iota
	focusPrompt
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// nodeItem is one row of the node list
type nodeItem struct {
	id       uint8
	kind     string
	liveness network.Liveness
	now      time.Time
}

// Implement list.Item interface
func (n nodeItem) Title() string {
	state := "online"
	if !n.liveness.Online {
		state = "OFFLINE"
	}
	return fmt.Sprintf("Node %3d  %s", n.id, state)
}

func (n nodeItem) Description() string {
	return fmt.Sprintf("%s, heard %s, %d strikes", n.kind, formatSince(n.liveness.LastCall, n.now), n.liveness.Strikes)
}

func (n nodeItem) FilterValue() string { return fmt.Sprintf("%d", n.id) }

type monitorEvent struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	hub      *hub
	connInfo string

	nodeList list.Model
	prompt   textinput.Model
	focused  int

	events []monitorEvent

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type monitorLogMsg string

type monitorReportMsg struct {
	nodeID uint8
	report zwave.Report
}

type readerDoneMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func newMonitorModel(h *hub) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "include | exclude | stop | nif | timeout <node> <s> | send <node> <class> <cmd> [hex]"
	ti.CharLimit = 80
	ti.Width = 60

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	nodeList := list.New([]list.Item{}, delegate, 40, 10)
	nodeList.Title = "Nodes"
	nodeList.SetShowStatusBar(false)
	nodeList.SetShowHelp(false)
	nodeList.SetFilteringEnabled(false)

	m := monitorModel{
		hub:      h,
		connInfo: h.connInfo,
		nodeList: nodeList,
		prompt:   ti,
		focused:  focusNodeList,
		width:    80,
		height:   24,
	}
	m.refreshNodes(time.Now())
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(monitorRefresh, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := max(m.height/2, 6)
		m.nodeList.SetSize(40, listHeight)

	case monitorTickMsg:
		m.refreshNodes(time.Time(msg))
		return m, monitorTickCmd()

	case monitorLogMsg:
		m.addEvent(string(msg), strings.Contains(string(msg), "ERR"))

	case monitorReportMsg:
		m.addEvent(fmt.Sprintf("Node %d: %s", msg.nodeID, zwave.FormatCommandName(msg.report.Class(), msg.report.ID())), false)
		m.refreshNodes(time.Now())

	case readerDoneMsg:
		m.connectionLost = true
		if msg.err != nil {
			m.addEvent(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addEvent("Connection closed", true)
		}
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focused == focusNodeList {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		if m.focused == focusNodeList {
			m.focused = focusPrompt
			m.prompt.Focus()
		} else {
			m.focused = focusNodeList
			m.prompt.Blur()
		}
		return m, nil

	case "enter":
		if m.focused == focusPrompt {
			line := m.prompt.Value()
			m.prompt.SetValue("")
			m.runCommand(line)
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.focused == focusPrompt {
		m.prompt, cmd = m.prompt.Update(msg)
	} else {
		m.nodeList, cmd = m.nodeList.Update(msg)
	}
	return m, cmd
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("ZWAVECTL MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("DISCONNECTED")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch", connStatus)))
	s.WriteString("\n\n")

	// Node list | engine panel
	listStyle := boxStyle
	if m.focused == focusNodeList {
		listStyle = focusedBoxStyle
	}
	nodePanel := listStyle.Render(m.nodeList.View())
	enginePanel := boxStyle.Width(max(m.width-48, 30)).Render(m.renderEnginePanel(labelStyle, valueStyle, headerStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, nodePanel, " ", enginePanel))
	s.WriteString("\n")

	// Prompt
	promptStyle := boxStyle
	if m.focused == focusPrompt {
		promptStyle = focusedBoxStyle
	}
	s.WriteString(promptStyle.Width(m.width - 4).Render(m.prompt.View()))
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog(labelStyle, warningStyle, headerStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderEnginePanel(labelStyle, valueStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder

	s.WriteString(labelStyle.Render("OFFLINE DETECTION"))
	s.WriteString("\n")

	if m.hub.engine == nil {
		s.WriteString(headerStyle.Render("not running"))
		return s.String()
	}

	last := m.hub.engine.LastResult()
	if last.Start.IsZero() {
		s.WriteString(headerStyle.Render("waiting for first cycle"))
		s.WriteString("\n")
	} else {
		fmt.Fprintf(&s, "%s %s\n", labelStyle.Render("Last cycle:"), valueStyle.Render(last.Start.Format(time.TimeOnly)))
		fmt.Fprintf(&s, "%s %s\n", labelStyle.Render("Queue:"), valueStyle.Render(fmt.Sprintf("%d", last.QueueSize)))
		fmt.Fprintf(&s, "%s %s\n", labelStyle.Render("Probed:"), valueStyle.Render(fmt.Sprintf("%v", last.Probed)))
		fmt.Fprintf(&s, "%s %s\n", labelStyle.Render("Next check:"), valueStyle.Render(last.Timings.NextCheckDelay.String()))
		fmt.Fprintf(&s, "%s %s\n", labelStyle.Render("Probe spacing:"), valueStyle.Render(last.Timings.PerProbeDelay.String()))
	}
	fmt.Fprintf(&s, "%s %s\n", labelStyle.Render("Min silence:"), valueStyle.Render(m.hub.engine.MinimumOfflineTimeout().String()))
	fmt.Fprintf(&s, "%s %s", labelStyle.Render("Pairing:"), valueStyle.Render(m.hub.pairing.State().String()))

	return s.String()
}

func (m monitorModel) renderEventLog(labelStyle, warningStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := min(len(m.events), 8)
	if len(m.events) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.events[len(m.events)-logHeight:] {
		icon := "i"
		style := warningStyle
		if entry.isError {
			icon = "x"
			style = errorStyle
		}
		fmt.Fprintf(&s, "%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message)
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// State
//////////////////////////////////////////////////////////////

func (m *monitorModel) refreshNodes(now time.Time) {
	nodes := m.hub.registry.NonGatewayNodes()
	items := make([]list.Item, len(nodes))
	for i, n := range nodes {
		items[i] = nodeItem{id: n.ID(), kind: nodeKind(n), liveness: n.Liveness(), now: now}
	}
	m.nodeList.SetItems(items)
}

func (m *monitorModel) addEvent(message string, isError bool) {
	m.events = append(m.events, monitorEvent{timestamp: time.Now(), message: message, isError: isError})
	if len(m.events) > maxMonitorEvents {
		m.events = m.events[len(m.events)-maxMonitorEvents:]
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// monitorCommand is a parsed prompt line
type monitorCommand struct {
	verb    string
	timeout time.Duration
	nodeID  uint8
	raw     zwave.RawBytes
}

func parseMonitorCommand(line string) (monitorCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return monitorCommand{}, fmt.Errorf("empty command")
	}

	c := monitorCommand{verb: strings.ToLower(fields[0])}
	switch c.verb {
	case "include", "exclude":
		c.timeout = defaultPairWindow
		if len(fields) > 2 {
			return monitorCommand{}, fmt.Errorf("usage: %s [timeout]", c.verb)
		}
		if len(fields) == 2 {
			d, err := time.ParseDuration(fields[1])
			if err != nil || d <= 0 {
				return monitorCommand{}, fmt.Errorf("invalid timeout %q", fields[1])
			}
			c.timeout = d
		}
	case "stop", "nif":
		if len(fields) != 1 {
			return monitorCommand{}, fmt.Errorf("%s takes no arguments", c.verb)
		}
	case "timeout":
		node, d, err := parseNodeTimeout(fields[1:])
		if err != nil {
			return monitorCommand{}, err
		}
		c.nodeID = node
		c.timeout = d
	case "send":
		raw, node, err := parseRawCommand(fields[1:])
		if err != nil {
			return monitorCommand{}, err
		}
		c.raw = raw
		c.nodeID = node
	default:
		return monitorCommand{}, fmt.Errorf("unknown command %q", fields[0])
	}
	return c, nil
}

func (m *monitorModel) runCommand(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if m.connectionLost {
		m.addEvent("Cannot send command: connection lost", true)
		return
	}

	c, err := parseMonitorCommand(line)
	if err != nil {
		m.addEvent(err.Error(), true)
		return
	}

	pairing := m.hub.pairing
	switch c.verb {
	case "include":
		err = pairing.StartPairing(c.timeout)
	case "exclude":
		err = pairing.StartRemoval(c.timeout)
	case "stop":
		switch pairing.State() {
		case inclusion.StateAdding:
			err = pairing.StopPairing()
		case inclusion.StateRemoving:
			err = pairing.StopRemoval()
		default:
			err = inclusion.ErrNotActive
		}
	case "nif":
		err = m.hub.controller.Send(zwave.BroadcastNodeID, m.hub.builder.NodeInfoSend())
	case "timeout":
		n, ok := m.hub.registry.Node(c.nodeID)
		if !ok {
			err = fmt.Errorf("unknown node %d", c.nodeID)
			break
		}
		n.SetOfflineTimeout(c.timeout)
	case "send":
		err = m.hub.controller.Send(c.nodeID, c.raw)
	}

	if err != nil {
		m.addEvent(fmt.Sprintf("%s: %v", c.verb, err), true)
		return
	}
	m.addEvent(fmt.Sprintf("%s: ok", strings.TrimSpace(line)), false)
}
