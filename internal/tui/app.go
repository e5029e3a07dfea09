// Package tui implements the live status dashboard shown by
// "edgeshift serve --dashboard".
package tui

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/edgeshift/internal/engine"
	"github.com/Iron-Ham/edgeshift/internal/event"
	tea "github.com/charmbracelet/bubbletea"
)

// App wraps the Bubbletea program
type App struct {
	program *tea.Program
	model   Model
	engine  *engine.Engine
}

// New creates a dashboard for eng.
func New(eng *engine.Engine) *App {
	return &App{
		model:  NewModel(eng),
		engine: eng,
	}
}

// Run starts the dashboard and blocks until the user quits or the process
// receives SIGINT/SIGTERM.
func (a *App) Run() error {
	a.program = tea.NewProgram(
		a.model,
		tea.WithAltScreen(),
	)

	// Forward engine events to the program
	subID := a.engine.Subscribe("*", func(e event.Event) {
		a.program.Send(eventMsg{event: e})
	})
	defer a.engine.Unsubscribe(subID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigChan; ok {
			a.program.Send(tea.Quit())
		}
	}()

	_, err := a.program.Run()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}
