package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/engine"
	"github.com/Iron-Ham/edgeshift/internal/event"
	tea "github.com/charmbracelet/bubbletea"
)

// RefreshInterval is how often the dashboard re-reads the engine status.
const RefreshInterval = time.Second

// maxEvents bounds the recent-events panel.
const maxEvents = 12

// Source is the engine surface the dashboard reads and drives.
type Source interface {
	Status() engine.Status
	ResetStats()
	ForceSync(ctx context.Context) bool
	ClearCache()
}

type tickMsg time.Time

type eventMsg struct {
	event event.Event
}

type syncDoneMsg struct {
	ok bool
}

// Model is the bubbletea model of the live dashboard.
type Model struct {
	source  Source
	status  engine.Status
	events  []string
	notice  string
	syncing bool
	width   int
	height  int
}

// NewModel creates a dashboard model reading from source.
func NewModel(source Source) Model {
	return Model{
		source: source,
		status: source.Status(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles key presses, refresh ticks and forwarded engine events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		m.status = m.source.Status()
		return m, tick()

	case eventMsg:
		m.events = append(m.events, describeEvent(msg.event))
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		m.status = m.source.Status()
		return m, nil

	case syncDoneMsg:
		m.syncing = false
		if msg.ok {
			m.notice = "sync complete"
		} else {
			m.notice = "sync failed"
		}
		m.status = m.source.Status()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "r":
		m.source.ResetStats()
		m.notice = "stats reset"
	case "c":
		m.source.ClearCache()
		m.notice = "cache cleared"
	case "s":
		if m.syncing {
			return m, nil
		}
		m.syncing = true
		m.notice = "syncing..."
		source := m.source
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return syncDoneMsg{ok: source.ForceSync(ctx)}
		}
	default:
		return m, nil
	}
	m.status = m.source.Status()
	return m, nil
}

// describeEvent renders one line for the recent-events panel.
func describeEvent(e event.Event) string {
	ts := e.Timestamp().Format("15:04:05")
	var text string
	switch ev := e.(type) {
	case event.TaskDispatchedEvent:
		where := "remote"
		if ev.Local {
			where = "local"
		}
		text = fmt.Sprintf("%s dispatched %s (%s)", ev.TaskID, where, ev.Rule)
	case event.TaskStateChangedEvent:
		text = fmt.Sprintf("%s %s -> %s", ev.TaskID, ev.From, ev.To)
		if ev.Err != nil {
			text += ": " + ev.Err.Error()
		}
	case event.ConnectivityChangedEvent:
		if ev.Connected {
			text = fmt.Sprintf("online (%s)", ev.NetworkKind)
		} else {
			text = "offline"
		}
	case event.SyncCompletedEvent:
		text = fmt.Sprintf("synced %d results (%s)", len(ev.Acked), ev.Trigger)
	case event.SyncFailedEvent:
		text = fmt.Sprintf("sync failed, %d pending (%s)", ev.Pending, ev.Trigger)
	case event.CacheEvictedEvent:
		text = fmt.Sprintf("cache evicted %d expired, %d overflow", ev.Expired, ev.Overflow)
	default:
		text = e.EventType()
	}
	return ts + " " + text
}
