package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/livefir/livehydrate"
	"github.com/livefir/livehydrate/cmd/lvh/internal/session"
	"github.com/livefir/livehydrate/internal/metrics"
	"github.com/livefir/livehydrate/widget/builtin"
)

// Render replays a session and prints the final HTML. With -stages, stage
// events are written to stderr as JSON lines.
func Render(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("render", stderr)
	var sf sessionFlags
	sf.register(fs)
	stages := fs.Bool("stages", false, "Print stage events to stderr as JSON lines")
	stats := fs.Bool("stats", false, "Print engine counters to stderr when done")
	sessionID := fs.String("session-id", "", "Label stage events with this id instead of a random one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sf.load()
	if err != nil {
		return err
	}
	steps, err := loadSteps(fs)
	if err != nil {
		return err
	}

	opts := livehydrate.Options{Config: cfg, Registry: builtin.NewRegistry(), SessionID: *sessionID}
	if *stages {
		enc := json.NewEncoder(stderr)
		opts.OnStage = func(ev livehydrate.StageEvent) {
			_ = enc.Encode(ev)
		}
	}
	engine, err := livehydrate.New(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	for i, step := range steps {
		if step.Record.Event == session.KindError {
			fmt.Fprintf(stderr, "step %d: upstream error: %s\n", i, step.Record.Message)
			continue
		}
		if !step.Apply {
			continue
		}
		if err := engine.Apply(step.Event); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	fmt.Fprintln(stdout, engine.HTML())

	if *stats {
		report := struct {
			metrics.Snapshot
			FailureRate float64          `json:"failure_rate"`
			Counters    map[string]int64 `json:"counters"`
		}{engine.Stats(), engine.FailureRate(), engine.Counters()}
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stderr, string(b))
	}
	return nil
}
