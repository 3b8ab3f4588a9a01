// Package session reads recorded upstream streams and turns them into engine
// events. A session file holds one JSON object per line:
//
//	{"event":"data","data":{"user":{"profile":{"title":"John"}}}}
//	{"event":"ui","content":"<p>Hello</p>"}
//	{"event":"replace","content":"<h1>Refined</h1>"}
//	{"event":"reset"}
//	{"event":"error","message":"upstream timed out"}
//	{"event":"done"}
//
// ui chunks append to the accumulated payload; replace swaps it out.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/livefir/livehydrate"
)

// Record kinds.
const (
	KindData    = "data"
	KindUI      = "ui"
	KindReplace = "replace"
	KindReset   = "reset"
	KindError   = "error"
	KindDone    = "done"
)

// maxLineSize bounds a single record; ui chunks of whole documents fit.
const maxLineSize = 4 << 20

// Record is one line of a session file.
type Record struct {
	Event   string                  `json:"event"`
	Data    livehydrate.DataContext `json:"data,omitempty"`
	Content string                  `json:"content,omitempty"`
	Message string                  `json:"message,omitempty"`
}

// Step is a record together with the engine event it produces and the
// accumulated payload after it.
type Step struct {
	Record  Record
	Event   livehydrate.Event
	Payload string

	// Apply is false for records that do not touch the engine (error, done).
	Apply bool
}

// Load reads the session file at path.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Read parses JSON lines from r. Blank lines are skipped.
func Read(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch rec.Event {
		case KindData, KindUI, KindReplace, KindReset, KindError, KindDone:
		default:
			return nil, fmt.Errorf("line %d: unknown event %q", line, rec.Event)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return records, nil
}

// Replay converts records into steps. Records after the first done are
// dropped.
func Replay(records []Record) []Step {
	steps := make([]Step, 0, len(records))
	payload := ""

	for _, rec := range records {
		step := Step{Record: rec, Apply: true}

		switch rec.Event {
		case KindData:
			data := rec.Data
			if data == nil {
				data = livehydrate.DataContext{}
			}
			step.Event = livehydrate.Event{Data: data}
		case KindUI:
			payload += rec.Content
			step.Event = livehydrate.Event{Markup: payload, HasMarkup: true}
		case KindReplace:
			payload = rec.Content
			step.Event = livehydrate.Event{Markup: payload, HasMarkup: true}
		case KindReset:
			payload = ""
			step.Event = livehydrate.Event{Reset: true}
		default:
			step.Apply = false
		}

		step.Payload = payload
		steps = append(steps, step)
		if rec.Event == KindDone {
			break
		}
	}
	return steps
}

// Describe is a one-line summary of a step for listings.
func (s Step) Describe() string {
	switch s.Record.Event {
	case KindData:
		return fmt.Sprintf("data: %d namespace(s)", len(s.Record.Data))
	case KindUI:
		return fmt.Sprintf("ui: +%d bytes (%d total)", len(s.Record.Content), len(s.Payload))
	case KindReplace:
		return fmt.Sprintf("replace: %d bytes", len(s.Payload))
	case KindError:
		return "error: " + s.Record.Message
	}
	return s.Record.Event
}
