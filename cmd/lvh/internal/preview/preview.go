// Package preview serves a live preview of a recorded session. Each websocket
// connection gets its own engine; the session is replayed into it and every
// committed step is pushed to the browser as a frame. Gestures sent back by
// the browser are dispatched to the mounted widgets.
package preview

import (
	_ "embed"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livefir/livehydrate"
	"github.com/livefir/livehydrate/cmd/lvh/internal/session"
	"github.com/livefir/livehydrate/widget"
	"github.com/livefir/livehydrate/widget/builtin"
)

//go:embed index.html
var indexHTML []byte

// Message types sent to the browser.
const (
	TypeFrame       = "frame"
	TypeInteraction = "interaction"
	TypeError       = "error"
	TypeDone        = "done"
)

// Message is one server-to-browser message.
type Message struct {
	Type        string              `json:"type"`
	Step        int                 `json:"step,omitempty"`
	HTML        string              `json:"html,omitempty"`
	Mounted     []string            `json:"mounted,omitempty"`
	Kind        string              `json:"kind,omitempty"`
	Interaction *widget.Interaction `json:"interaction,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// GestureMessage is one browser-to-server message.
type GestureMessage struct {
	SlotID string `json:"slotId"`
	Kind   string `json:"kind"`
	Index  int    `json:"index"`
}

// DefaultWriteTimeout bounds every websocket write. A zero
// Handler.WriteTimeout disables the bound.
const DefaultWriteTimeout = 10 * time.Second

// Handler serves the preview page on / and the stream on /ws.
type Handler struct {
	Config       *livehydrate.Config
	Steps        []session.Step
	Delay        time.Duration
	WriteTimeout time.Duration
	Upgrader     *websocket.Upgrader
}

// New creates a preview handler for a replayed session.
func New(cfg *livehydrate.Config, steps []session.Step, delay time.Duration) *Handler {
	return &Handler{
		Config:       cfg,
		Steps:        steps,
		Delay:        delay,
		WriteTimeout: DefaultWriteTimeout,
		Upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case websocket.IsWebSocketUpgrade(r):
		h.handleWebSocket(w, r)
	case r.URL.Path == "/":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexHTML)
	default:
		http.NotFound(w, r)
	}
}

// conn serializes writes; gorilla/websocket allows one concurrent writer.
type conn struct {
	ws      *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

func (c *conn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeout != 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteJSON(msg)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	c := &conn{ws: ws, timeout: h.WriteTimeout}
	engine, err := livehydrate.New(livehydrate.Options{
		Config:   h.Config,
		Registry: builtin.NewRegistry(),
		OnInteraction: func(kind string, in widget.Interaction) {
			if err := c.send(Message{Type: TypeInteraction, Kind: kind, Interaction: &in}); err != nil {
				log.Printf("Failed to send interaction: %v", err)
			}
		},
	})
	if err != nil {
		log.Printf("Failed to create engine: %v", err)
		return
	}
	defer engine.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readGestures(c, engine)
	}()

	if !h.replay(c, engine, done) {
		// The reader only returns once the connection fails.
		_ = ws.Close()
	}
	<-done
}

// replay pushes every step to the browser. It reports whether the whole
// session was sent.
func (h *Handler) replay(c *conn, engine *livehydrate.Engine, done <-chan struct{}) bool {
	for i, step := range h.Steps {
		if step.Record.Event == session.KindError {
			if err := c.send(Message{Type: TypeError, Step: i, Error: step.Record.Message}); err != nil {
				log.Printf("WebSocket write failed: %v", err)
				return false
			}
			continue
		}
		if !step.Apply {
			continue
		}
		if err := engine.Apply(step.Event); err != nil {
			log.Printf("Failed to apply step %d: %v", i, err)
			return false
		}
		frame := Message{Type: TypeFrame, Step: i, HTML: engine.HTML(), Mounted: engine.Mounted()}
		if err := c.send(frame); err != nil {
			log.Printf("WebSocket write failed: %v", err)
			return false
		}

		if h.Delay > 0 {
			select {
			case <-done:
				return false
			case <-time.After(h.Delay):
			}
		}
	}
	if err := c.send(Message{Type: TypeDone, Step: len(h.Steps)}); err != nil {
		log.Printf("WebSocket write failed: %v", err)
		return false
	}
	return true
}

func (h *Handler) readGestures(c *conn, engine *livehydrate.Engine) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var msg GestureMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Failed to parse gesture: %v", err)
			continue
		}
		if msg.Kind == "" {
			msg.Kind = widget.InteractionClick
		}
		if err := engine.Dispatch(msg.SlotID, widget.Gesture{Kind: msg.Kind, Index: msg.Index}); err != nil {
			if sendErr := c.send(Message{Type: TypeError, Error: err.Error()}); sendErr != nil {
				return
			}
		}
	}
}
