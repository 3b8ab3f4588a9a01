package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/livefir/livehydrate/internal/tracestore"
)

// Trace lists recorded sessions, or the stage events of one session.
func Trace(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("trace", stderr)
	dbPath := fs.String("db", "", "Trace database written by an engine with trace_db set (required)")
	sessionID := fs.String("session", "", "Show the events of this session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("-db is required")
	}

	store, err := tracestore.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *sessionID == "" {
		sessions, err := store.Sessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Fprintln(stdout, "No sessions recorded.")
			return nil
		}
		fmt.Fprintln(stdout, renderSessions(sessions))
		return nil
	}

	events, err := store.Events(ctx, *sessionID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no events for session %s", *sessionID)
	}
	fmt.Fprintln(stdout, renderEvents(events))
	return nil
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func renderSessions(sessions []tracestore.Session) string {
	t := newTable("SESSION", "EVENTS", "FIRST", "LAST")
	for _, s := range sessions {
		t.Row(s.ID, strconv.Itoa(s.Events), s.First.Format(time.DateTime), s.Last.Format(time.DateTime))
	}
	return t.String()
}

func renderEvents(events []tracestore.Event) string {
	t := newTable("SEQ", "TIME", "STAGE", "MESSAGE")
	for _, ev := range events {
		t.Row(strconv.Itoa(ev.Seq), ev.RecordedAt.Format("15:04:05.000"), ev.Stage, ev.Message)
	}
	return t.String()
}
