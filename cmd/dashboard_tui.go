// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ecoplant/ecostat/internal/gateway"
	"github.com/ecoplant/ecostat/pkg/ecoplant"
	"github.com/ecoplant/ecostat/pkg/params"
	"github.com/ecoplant/ecostat/pkg/syrus4"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const defaultUnit = "segundos"

// Focus states
const (
	focusOperationList = iota
	focusValueInput
)

var (
	errOutOfRange   = errors.New("value out of range")
	errInvalidInput = errors.New("invalid input")
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// logEntry is one line of the event log
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for information
}

// operationItem is a settable parameter in the operation list
type operationItem struct {
	code     ecoplant.OperationCode
	schedule bool
}

// Implement list.Item interface
func (o operationItem) Title() string {
	if o.schedule {
		return string(ecoplant.KeySchedule)
	}
	pc, _ := o.code.Config()
	return string(pc.Key)
}

func (o operationItem) Description() string {
	if o.schedule {
		return "start - end (7:00 a - 3:00 p)"
	}
	pc, _ := o.code.Config()
	if pc.Alert {
		return "GPM threshold"
	}
	return "segundos / minutos / horas"
}

func (o operationItem) FilterValue() string { return o.Title() }

// dashboardModel is the Bubble Tea model for the dashboard TUI
type dashboardModel struct {
	ctx      context.Context
	session  *params.Session
	exec     gateway.Executor
	connInfo string

	// Parameters
	bulk       *syrus4.BulkParams
	queryState params.QueryState
	querying   bool

	// Realtime
	stats       *params.Statistics
	lastFrame   time.Time
	lastFlow    ecoplant.Event
	hasFlow     bool
	lastProcess int
	hasProcess  bool

	// Control
	operations   list.Model
	valueInput   textinput.Model
	focusedField int
	sending      bool

	// Monitoring
	eventLog      []logEntry
	maxLogEntries int

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type dashboardTickMsg time.Time

type frameMsg struct {
	frame string
	at    time.Time
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

type queryDoneMsg struct {
	report deviceReport
	err    error
}

type commandDoneMsg struct {
	label     string
	commands  []string
	responses []string
	err       error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialDashboardModel(ctx context.Context, session *params.Session, exec gateway.Executor, connInfo string) dashboardModel {
	ti := textinput.New()
	ti.Placeholder = "5 minutos"
	ti.CharLimit = 32
	ti.Width = 24

	items := make([]list.Item, 0, len(ecoplant.Operations)+1)
	for _, code := range ecoplant.Operations {
		items = append(items, operationItem{code: code})
	}
	items = append(items, operationItem{schedule: true})

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	operations := list.New(items, delegate, 34, 14)
	operations.Title = "Parameters"
	operations.SetShowStatusBar(false)
	operations.SetShowHelp(false)
	operations.SetFilteringEnabled(false)

	state := params.QueryPending
	if exec == nil {
		// Nothing will ever answer a query; only live values can arrive
		state = params.QueryDone
	}

	return dashboardModel{
		ctx:           ctx,
		session:       session,
		exec:          exec,
		connInfo:      connInfo,
		queryState:    state,
		querying:      exec != nil,
		stats:         params.NewStatistics(),
		operations:    operations,
		valueInput:    ti,
		focusedField:  focusOperationList,
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m dashboardModel) Init() tea.Cmd {
	cmds := []tea.Cmd{dashboardTickCmd()}
	if m.exec != nil {
		cmds = append(cmds, queryCmd(m.ctx, m.exec, m.session))
	}
	return tea.Batch(cmds...)
}

func dashboardTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return dashboardTickMsg(t)
	})
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case dashboardTickMsg:
		return m, dashboardTickCmd()

	case frameMsg:
		m.processFrame(msg)

	case queryDoneMsg:
		m.querying = false
		if msg.err != nil {
			m.queryState = params.QueryFailed
			m.addLogEntry(fmt.Sprintf("Parameter query failed: %v", msg.err), true)
			break
		}
		m.queryState = msg.report.state
		if msg.report.Bulk != nil {
			m.bulk = msg.report.Bulk
		}
		m.addLogEntry(fmt.Sprintf("Parameter query finished (%s)", msg.report.Elapsed), false)

	case commandDoneMsg:
		m.sending = false
		m.processCommandResult(msg)

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	var cmd tea.Cmd
	if m.focusedField == focusValueInput {
		m.valueInput, cmd = m.valueInput.Update(msg)
	}
	return m, cmd
}

func (m dashboardModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		return m.toggleFocus(), nil

	case "enter":
		if m.focusedField == focusOperationList {
			return m.toggleFocus(), nil
		}
		return m.submit()

	case "esc":
		if m.focusedField == focusValueInput {
			m.valueInput.Reset()
			return m.toggleFocus(), nil
		}
	}

	if m.focusedField == focusOperationList {
		switch msg.String() {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if m.exec != nil && !m.querying {
				m.querying = true
				m.queryState = params.QueryPending
				m.addLogEntry("Refreshing parameters", false)
				return m, queryCmd(m.ctx, m.exec, m.session)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.operations, cmd = m.operations.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.valueInput, cmd = m.valueInput.Update(msg)
	return m, cmd
}

func (m dashboardModel) toggleFocus() dashboardModel {
	if m.focusedField == focusOperationList {
		m.focusedField = focusValueInput
		m.valueInput.Focus()
		if item, ok := m.selectedOperation(); ok && item.schedule {
			m.valueInput.Placeholder = "7:00 a - 3:00 p"
		} else {
			m.valueInput.Placeholder = "5 minutos"
		}
	} else {
		m.focusedField = focusOperationList
		m.valueInput.Blur()
	}
	return m
}

// submit validates the typed value and starts sending the command
func (m dashboardModel) submit() (tea.Model, tea.Cmd) {
	if m.exec == nil {
		m.addLogEntry("Cannot send command: no gateway configured", true)
		return m, nil
	}
	if m.sending {
		m.addLogEntry("A command is already in flight", true)
		return m, nil
	}
	item, ok := m.selectedOperation()
	if !ok {
		return m, nil
	}

	input := m.valueInput.Value()
	var cmd tea.Cmd
	if item.schedule {
		start, end, err := parseWindowInput(input)
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		cmd = sendWindowCmd(m.ctx, m.exec, m.session, start, end)
	} else {
		magnitude, unit, err := parseValueInput(input)
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		cmd = sendParameterCmd(m.ctx, m.exec, m.session, item.code, magnitude, unit)
	}

	m.sending = true
	m.valueInput.Reset()
	m.addLogEntry(fmt.Sprintf("Sending %s = %s", item.Title(), input), false)
	return m, cmd
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("ECOSTAT DASHBOARD"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch r=refresh", connStatus)))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf(" %s %s  %s %s",
		statsLabelStyle.Render("Device:"), statsValueStyle.Render(orUnknown(m.session.DeviceID())),
		statsLabelStyle.Render("Generation:"), statsValueStyle.Render(m.session.Generation().String())))
	if cal := m.session.Calibration(); cal != nil {
		s.WriteString(fmt.Sprintf("  %s %s", statsLabelStyle.Render("mv_zero:"), statsValueStyle.Render(strconv.Itoa(*cal))))
	}
	s.WriteString("\n\n")

	// Layout: left panel (operations) | right panel (parameters)
	leftWidth := 36
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 40 {
		rightWidth = 40
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusOperationList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	operationPanel := listStyle.Render(m.operations.View())

	paramContent := m.renderParameters(statsLabelStyle, statsValueStyle, errorStyle, warningStyle, headerStyle)
	inputStyle := boxStyle
	if m.focusedField == focusValueInput {
		inputStyle = focusedBoxStyle
	}
	paramContent += "\n\n" + inputStyle.Render(m.valueInput.View())
	paramPanel := boxStyle.Width(rightWidth).Render(paramContent)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, operationPanel, " ", paramPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderRealtimeBar(statsLabelStyle, statsValueStyle, errorStyle, headerStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m dashboardModel) parameters() params.ParameterSet {
	return params.Reconcile(m.session.Live(), m.bulk, m.session.Generation(), m.queryState)
}

func (m dashboardModel) renderParameters(statsLabelStyle, statsValueStyle, errorStyle, warningStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("CURRENT VALUES"))
	if m.sending {
		s.WriteString(warningStyle.Render("  sending..."))
	}
	s.WriteString("\n")

	set := m.parameters()
	for _, key := range ecoplant.SocketKeys {
		p := set[key]
		var value string
		switch p.Status {
		case params.StatusSuccess:
			value = statsValueStyle.Render(p.Value)
		case params.StatusLoading:
			value = warningStyle.Render("cargando...")
		default:
			value = errorStyle.Render("sin datos")
		}
		s.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(fmt.Sprintf("%-24s", key)), value))
	}
	return strings.TrimRight(s.String(), "\n")
}

func (m dashboardModel) renderRealtimeBar(statsLabelStyle, statsValueStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	m.stats.CalculateRates()

	rejected := statsValueStyle.Render("0")
	if m.stats.Rejections > 0 {
		rejected = errorStyle.Render(strconv.FormatUint(m.stats.Rejections, 10))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(strconv.FormatUint(m.stats.TotalFrames, 10)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Results:"), statsValueStyle.Render(strconv.FormatUint(m.stats.Results, 10)),
		statsLabelStyle.Render("Rejected:"), rejected,
		statsLabelStyle.Render("Unknown:"), statsValueStyle.Render(strconv.FormatUint(m.stats.Unknown, 10)),
	)

	if m.hasFlow {
		flow := fmt.Sprintf("%d mV", m.lastFlow.Raw)
		if m.lastFlow.HasGPM {
			flow = fmt.Sprintf("%d GPM (%d mV)", m.lastFlow.GPM, m.lastFlow.Raw)
		}
		content += fmt.Sprintf("  %s %s", statsLabelStyle.Render("Flow:"), statsValueStyle.Render(flow))
	}
	if m.hasProcess {
		content += fmt.Sprintf("  %s %s", statsLabelStyle.Render("Process:"), statsValueStyle.Render(fmt.Sprintf("%02d", m.lastProcess)))
	}
	if !m.lastFrame.IsZero() {
		age := ecoplant.SecondsToHuman(int(time.Since(m.lastFrame).Seconds()))
		content += "  " + headerStyle.Render("last frame hace "+age)
	}

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m dashboardModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := m.height - 28
	if logHeight < 5 {
		logHeight = 5
	}

	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *dashboardModel) processFrame(msg frameMsg) {
	m.lastFrame = msg.at

	outcome := classifyFrame(m.session, msg.frame)
	switch {
	case outcome.isResult && outcome.result.Value == ecoplant.InvalidParameter:
		m.stats.RecordResult(outcome.result)
		m.addLogEntry(fmt.Sprintf("Device rejected %s", outcome.result.Key), true)
	case outcome.isResult:
		m.stats.RecordResult(outcome.result)
		m.addLogEntry(fmt.Sprintf("%s = %s", outcome.result.Key, outcome.result.Value), false)
	case outcome.isEvent && outcome.event.Kind == ecoplant.EventFlow:
		m.stats.RecordEvent(outcome.event)
		m.lastFlow = outcome.event
		m.hasFlow = true
	case outcome.isEvent:
		m.stats.RecordEvent(outcome.event)
		m.lastProcess = outcome.event.Process
		m.hasProcess = true
	default:
		m.stats.RecordUnknown()
	}
}

func (m *dashboardModel) processCommandResult(msg commandDoneMsg) {
	if msg.err != nil {
		m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.label, msg.err), true)
		return
	}

	for i, response := range msg.responses {
		switch {
		case response == "":
			m.addLogEntry(fmt.Sprintf("Sent %s", msg.commands[i]), false)
		case m.session.IsRejection(response):
			if result, ok := m.session.Observe(response); ok {
				m.stats.RecordResult(result)
			}
			m.addLogEntry(fmt.Sprintf("Device rejected %s", msg.label), true)
		default:
			if result, ok := m.session.Observe(response); ok {
				m.addLogEntry(fmt.Sprintf("%s = %s", result.Key, result.Value), false)
			} else {
				m.addLogEntry(fmt.Sprintf("%s acknowledged", msg.label), false)
			}
		}
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func queryCmd(ctx context.Context, exec gateway.Executor, session *params.Session) tea.Cmd {
	return func() tea.Msg {
		started := time.Now()
		report, err := collectParameters(ctx, exec, session)
		report.Elapsed = time.Since(started).Round(time.Millisecond).String()
		return queryDoneMsg{report: report, err: err}
	}
}

func sendParameterCmd(ctx context.Context, exec gateway.Executor, session *params.Session, code ecoplant.OperationCode, magnitude float64, unit string) tea.Cmd {
	return func() tea.Msg {
		label := code.String()
		if !session.HasTemplate(code) {
			if err := fetchTemplate(ctx, exec, session, code); err != nil {
				return commandDoneMsg{label: label, err: err}
			}
		}

		command, err := session.BuildCommand(code, magnitude, unit)
		if err != nil {
			return commandDoneMsg{label: label, err: err}
		}
		if params.IsOutOfRange(command) {
			return commandDoneMsg{label: label, err: errOutOfRange}
		}

		responses, err := gateway.Send(ctx, exec, session.DeviceID(), command)
		return commandDoneMsg{label: label, commands: []string{command}, responses: responses, err: err}
	}
}

func sendWindowCmd(ctx context.Context, exec gateway.Executor, session *params.Session, start, end string) tea.Cmd {
	return func() tea.Msg {
		label := string(ecoplant.KeySchedule)
		commands, err := session.BuildWindowCommand(start, end)
		if err != nil {
			return commandDoneMsg{label: label, err: err}
		}
		responses, err := gateway.Send(ctx, exec, session.DeviceID(), commands...)
		return commandDoneMsg{label: label, commands: commands, responses: responses, err: err}
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

// parseValueInput reads "<number> [unit]"; the unit defaults to segundos
func parseValueInput(input string) (float64, string, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, "", fmt.Errorf("%w: expected \"<number> [unit]\"", errInvalidInput)
	}
	magnitude, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q is not a number", errInvalidInput, fields[0])
	}
	unit := defaultUnit
	if len(fields) == 2 {
		unit = fields[1]
	}
	return magnitude, unit, nil
}

// parseWindowInput reads "<start> - <end>"
func parseWindowInput(input string) (string, string, error) {
	parts := strings.Split(input, "-")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: expected \"<start> - <end>\"", errInvalidInput)
	}
	start := strings.TrimSpace(parts[0])
	end := strings.TrimSpace(parts[1])
	if start == "" || end == "" {
		return "", "", fmt.Errorf("%w: expected \"<start> - <end>\"", errInvalidInput)
	}
	return start, end, nil
}

func (m *dashboardModel) addLogEntry(message string, isError bool) {
	entry := logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m dashboardModel) selectedOperation() (operationItem, bool) {
	item, ok := m.operations.SelectedItem().(operationItem)
	return item, ok
}

func (m *dashboardModel) updateListSize() {
	listHeight := m.height / 2
	if listHeight < 8 {
		listHeight = 8
	}
	m.operations.SetSize(34, listHeight)
}
