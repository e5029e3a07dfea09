package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(Title.Render("edgeshift"))
	b.WriteString("\n")

	left := lipgloss.JoinVertical(lipgloss.Left,
		Panel.Render(m.renderDevice()),
		Panel.Render(m.renderDispatch()),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		Panel.Render(m.renderExecutor()),
		Panel.Render(m.renderSync()),
	)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	b.WriteString("\n")
	b.WriteString(Panel.Render(m.renderEvents()))
	b.WriteString("\n")

	help := "q quit  r reset stats  s sync now  c clear cache"
	if m.notice != "" {
		help += "  |  " + m.notice
	}
	b.WriteString(HelpBar.Render(help))
	return b.String()
}

func (m Model) renderDevice() string {
	d := m.status.Device
	conn := Secondary.Render("online")
	if !d.IsConnected {
		conn = Error.Render("offline")
	}
	battery := fmt.Sprintf("%.0f%%", d.BatteryPct)
	if d.BatteryPct < 20 {
		battery = Warning.Render(battery)
	}
	lines := []string{
		PanelTitle.Render("Device"),
		fmt.Sprintf("Network   %s %s %.0f kbps", conn, d.NetworkKind, d.NetworkSpeedKbps),
		fmt.Sprintf("Battery   %s", battery),
		fmt.Sprintf("Benchmark %.0f", d.BenchmarkLevel),
		fmt.Sprintf("CPU/Mem   %.0f%% / %.0f%%", d.CPUPct, d.MemPct),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDispatch() string {
	s := m.status.Dispatcher
	lines := []string{
		PanelTitle.Render("Dispatch"),
		fmt.Sprintf("Total     %d", s.TotalTasks),
		fmt.Sprintf("Local     %d", s.LocalTasks),
		fmt.Sprintf("Remote    %d", s.RemoteTasks),
		fmt.Sprintf("Succeeded %s", Secondary.Render(fmt.Sprint(s.Succeeded))),
		fmt.Sprintf("Failed    %s", Error.Render(fmt.Sprint(s.Failed))),
		fmt.Sprintf("Retries   %d (%d in flight)", s.Retries, m.status.Retrying),
		fmt.Sprintf("Fallbacks %d", s.Fallbacks),
		fmt.Sprintf("Cache hit %d", s.CacheHits),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderExecutor() string {
	e := m.status.Executor
	lines := []string{
		PanelTitle.Render("Executor"),
		fmt.Sprintf("Running   %d/%d", e.Running, e.Limit),
		fmt.Sprintf("Queued    %d", e.QueueLength),
		fmt.Sprintf("Cached    %d", e.CacheSize),
		fmt.Sprintf("Retained  %d", e.Retained),
		fmt.Sprintf("History   %d", e.HistoryCount),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSync() string {
	s := m.status.Sync
	pending := fmt.Sprint(m.status.PendingSyncCount)
	if m.status.PendingSyncCount > 0 {
		pending = Warning.Render(pending)
	}
	lines := []string{
		PanelTitle.Render("Sync"),
		fmt.Sprintf("Pending   %s", pending),
		fmt.Sprintf("Batches   %d", s.Batches),
		fmt.Sprintf("Synced    %d", s.Synced),
		fmt.Sprintf("Failures  %d", s.Failures),
	}
	if !m.status.RemoteEnabled {
		lines = append(lines, Muted.Render("no remote configured"))
	}
	if s.LastError != "" {
		lines = append(lines, Error.Render(s.LastError))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEvents() string {
	lines := []string{PanelTitle.Render("Recent events")}
	if len(m.events) == 0 {
		lines = append(lines, Muted.Render("waiting for activity"))
	}
	for _, e := range m.events {
		lines = append(lines, Info.Render(e))
	}
	return strings.Join(lines, "\n")
}
