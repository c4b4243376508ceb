// Package a2a implements the wire protocol spoken between agents: messages
// made of tagged parts, carried over JSON-RPC 2.0, plus the agent card served
// for capability discovery.
package a2a

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	PartKindText = "text"
	PartKindData = "data"
)

const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Part is one segment of a message: either free text or structured data. The
// kind field is the sole discriminant; decoding never probes for attributes.
type Part struct {
	Kind string
	Text string
	Data map[string]any
}

// TextPart builds a text segment.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// DataPart builds a structured-data segment.
func DataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

type wirePart struct {
	Kind string         `json:"kind"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

func (p Part) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PartKindText:
		return json.Marshal(wirePart{Kind: PartKindText, Text: p.Text})
	case PartKindData:
		return json.Marshal(wirePart{Kind: PartKindData, Data: p.Data})
	default:
		return nil, fmt.Errorf("part kind %q is not text or data", p.Kind)
	}
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var w wirePart
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case PartKindText:
		*p = Part{Kind: PartKindText, Text: w.Text}
	case PartKindData:
		*p = Part{Kind: PartKindData, Data: w.Data}
	default:
		return fmt.Errorf("part kind %q is not text or data", w.Kind)
	}
	return nil
}

// Message is one conversational turn on the wire.
type Message struct {
	Kind      string `json:"kind"`
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
	MessageID string `json:"message_id"`
	ContextID string `json:"context_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
}

// NewMessage builds a message with a fresh message id. An empty contextID
// starts a new conversation; the remote side assigns one in its reply.
func NewMessage(role string, parts []Part, contextID string) Message {
	return Message{
		Kind:      "message",
		Role:      role,
		Parts:     parts,
		MessageID: uuid.NewString(),
		ContextID: contextID,
	}
}

// MergeParts flattens a part list into display text: text segments verbatim,
// data segments as indented JSON.
func MergeParts(parts []Part) string {
	var out string
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		switch p.Kind {
		case PartKindText:
			out += p.Text
		case PartKindData:
			data, err := json.MarshalIndent(p.Data, "", "  ")
			if err == nil {
				out += string(data)
			}
		}
	}
	return out
}

// AgentCard is the capability descriptor served at the well-known card path.
// A well-formed card within the probe timeout is what "ready" means.
type AgentCard struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	URL                string   `json:"url"`
	Version            string   `json:"version"`
	DefaultInputModes  []string `json:"default_input_modes,omitempty"`
	DefaultOutputModes []string `json:"default_output_modes,omitempty"`
	Skills             []Skill  `json:"skills,omitempty"`
}

// Skill describes one advertised capability on an agent card.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// CardPath is where agent cards are served and probed.
const CardPath = "/.well-known/agent.json"
