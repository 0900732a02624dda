package stream

import (
	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/controller"
	"github.com/fulopkrisztian-prog/Mia/internal/logging"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

// Command types a renderer or host may send.
const (
	CommandMood     = "mood"
	CommandBusy     = "busy"
	CommandPointer  = "pointer"
	CommandRequest  = "request"
	CommandResponse = "response"
	CommandReload   = "reload"
	CommandSnapshot = "snapshot"
)

// Message types sent to clients.
const (
	MessageFrame    = "frame"
	MessageEvent    = "event"
	MessageAck      = "ack"
	MessageSnapshot = "snapshot"
	MessageLog      = "log"
)

// Command is one JSON message read from a client.
type Command struct {
	ID       string  `json:"id,omitempty"`
	Type     string  `json:"type"`
	Mood     string  `json:"mood,omitempty"`
	Busy     bool    `json:"busy,omitempty"`
	X        float32 `json:"x,omitempty"`
	Y        float32 `json:"y,omitempty"`
	Text     string  `json:"text,omitempty"`
	Category string  `json:"category,omitempty"`
}

// Ack answers a command.
type Ack struct {
	ID    string    `json:"id,omitempty"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
	Mood  mood.Mood `json:"mood,omitempty"`
}

// Message is one JSON message written to a client.
type Message struct {
	Type     string                 `json:"type"`
	Frame    *controller.FrameState `json:"frame,omitempty"`
	Event    *bus.Event             `json:"event,omitempty"`
	Ack      *Ack                   `json:"ack,omitempty"`
	Snapshot *controller.Snapshot   `json:"snapshot,omitempty"`
	Log      *logging.LogEntry      `json:"log,omitempty"`
}
