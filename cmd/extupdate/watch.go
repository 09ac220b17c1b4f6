package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/extupdate"
	"github.com/jpalmerr/extupdate/status"
)

// watchCmd runs the monitor with a live terminal view.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the monitor with a live terminal view",
	Long: `Run the monitor like serve, and show every extension's status in the
terminal as it changes.

Statuses not yet acknowledged are marked with "*".

Keys:
  a  acknowledge every marked status
  q  quit

Example:
  extupdate watch -c config.yaml`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = watchCmd.MarkFlagRequired("config")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// the terminal belongs to the view; only problems are logged
	logger := newLogger(slog.LevelError)

	configFile, _ := cmd.Flags().GetString("config")
	m, _, err := loadMonitor(configFile, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes := m.Subscribe()
	defer m.Unsubscribe(changes)

	startErr := make(chan error, 1)
	go func() {
		err := m.Start(ctx)
		if err != nil {
			cancel()
		}
		startErr <- err
	}()

	program := tea.NewProgram(newWatchModel(m, changes),
		tea.WithContext(ctx),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	_, runErr := program.Run()

	cancel()
	if err := <-startErr; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal view: %w", runErr)
	}
	return nil
}

// statusSource is the part of the Monitor the view reads and acknowledges through.
type statusSource interface {
	Snapshot() *status.Snapshot
	Acknowledge(name string) bool
}

// changeMsg reports that the monitor's snapshot changed.
type changeMsg extupdate.Change

// changesClosedMsg reports that the change subscription ended.
type changesClosedMsg struct{}

// watchModel is the bubbletea model for the watch command.
type watchModel struct {
	source   statusSource
	changes  <-chan extupdate.Change
	snapshot *status.Snapshot
	last     extupdate.Change
}

func newWatchModel(source statusSource, changes <-chan extupdate.Change) watchModel {
	return watchModel{
		source:   source,
		changes:  changes,
		snapshot: source.Snapshot(),
	}
}

// waitForChange blocks for the next change on ch.
func waitForChange(ch <-chan extupdate.Change) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return changesClosedMsg{}
		}
		return changeMsg(c)
	}
}

func (w watchModel) Init() tea.Cmd {
	return waitForChange(w.changes)
}

func (w watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case changeMsg:
		w.last = extupdate.Change(msg)
		w.refresh()
		return w, waitForChange(w.changes)

	case changesClosedMsg:
		return w, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return w, tea.Quit
		case "a":
			for _, name := range w.snapshot.Pending() {
				w.source.Acknowledge(name)
			}
			w.refresh()
		}
	}
	return w, nil
}

func (w *watchModel) refresh() {
	w.snapshot = w.source.Snapshot()
}

func (w watchModel) View() string {
	var b strings.Builder

	entries := w.snapshot.Entries()
	if len(entries) == 0 {
		b.WriteString("waiting for the first update check...\n")
	}

	width := len("EXTENSION")
	for _, e := range entries {
		width = max(width, len(e.Name))
	}

	if len(entries) > 0 {
		fmt.Fprintf(&b, "  %-*s  %s\n", width, "EXTENSION", "STATUS")
	}
	for _, e := range entries {
		marker := " "
		if !e.Acknowledged {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %-*s  %s\n", marker, width, e.Name, e.State)
	}

	b.WriteString("\n")
	if n := countAvailable(w.snapshot); n > 0 {
		fmt.Fprintf(&b, "%d update(s) available\n", n)
	}
	if w.last.Name != "" {
		fmt.Fprintf(&b, "last change: %s\n", describeChange(w.last))
	}
	b.WriteString("a: acknowledge  q: quit\n")
	return b.String()
}

// describeChange renders a change as one line of text.
func describeChange(c extupdate.Change) string {
	switch {
	case c.Removed:
		return c.Name + " removed"
	case c.Acknowledged:
		return fmt.Sprintf("%s acknowledged (%s)", c.Name, c.State)
	default:
		return fmt.Sprintf("%s is %s", c.Name, c.State)
	}
}

// countAvailable returns how many extensions have an update available.
func countAvailable(s *status.Snapshot) int {
	n := 0
	for _, e := range s.Entries() {
		if e.State == status.StateUpdateAvailable {
			n++
		}
	}
	return n
}
