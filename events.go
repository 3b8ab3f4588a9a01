package livehydrate

import (
	"time"

	"github.com/livefir/livehydrate/internal/datapath"
)

// DataContext maps namespace to key to value. It is replaced wholesale on
// every data update.
type DataContext = datapath.Context

// Event is one update from the upstream stream.
type Event struct {
	// Data, when non-nil, replaces the data context.
	Data DataContext

	// Markup is the new payload; it is only applied when HasMarkup is set
	// so an empty payload can be told apart from no payload.
	Markup    string
	HasMarkup bool

	// Reset ends the current epoch before anything else in the event.
	Reset bool
}

// Stage names a step of the hydration pipeline.
type Stage string

const (
	StageParse    Stage = "parse"
	StageSanitize Stage = "sanitize"
	StageDetect   Stage = "detect"
	StageResolve  Stage = "resolve"
	StageMount    Stage = "mount"
	StageComplete Stage = "complete"
)

// StageEvent is emitted as the pipeline runs. Observers must not rely on
// it for anything but debugging.
type StageEvent struct {
	SessionID string         `json:"sessionId"`
	Stage     Stage          `json:"stage"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	SlotCount int            `json:"slotCount"`
	Time      time.Time      `json:"timestamp"`
}
