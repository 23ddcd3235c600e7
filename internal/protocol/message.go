package protocol

import "encoding/json"

// Reserved method names carried in the event position of a message.
const (
	MethodCreate  = "__create__"
	MethodAdopt   = "__adopt__"
	MethodDispose = "__dispose__"
)

// Error names the driver uses to select a client-side error class.
const (
	ErrorNameTimeout      = "TimeoutError"
	ErrorNameTargetClosed = "TargetClosedError"
)

// Message is one decoded frame payload. A call carries id+guid+method+params,
// a response carries id plus result or error, and an event carries
// guid+method+params with no id.
type Message struct {
	ID     int            `json:"id,omitempty"`
	GUID   string         `json:"guid"`
	Method string         `json:"method,omitempty"`
	Params map[string]any `json:"params"`
	Result any            `json:"result,omitempty"`
	Error  *ErrorPayload  `json:"error,omitempty"`
}

// ErrorPayload is the remote error shape on a response.
type ErrorPayload struct {
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// IsResponse reports whether m correlates to a prior call.
func (m *Message) IsResponse() bool {
	return m.ID != 0
}

// CreateParams is the params shape of a MethodCreate event.
type CreateParams struct {
	Type        string
	GUID        string
	Initializer map[string]any
}

// ParseCreateParams pulls the typed creation fields out of a raw params map.
func (m *Message) ParseCreateParams() (CreateParams, bool) {
	out := CreateParams{}
	typ, ok := m.Params["type"].(string)
	if !ok {
		return out, false
	}
	guid, ok := m.Params["guid"].(string)
	if !ok {
		return out, false
	}
	out.Type = typ
	out.GUID = guid
	if init, ok := m.Params["initializer"].(map[string]any); ok {
		out.Initializer = init
	} else {
		out.Initializer = map[string]any{}
	}
	return out, true
}

// Decode parses one frame payload.
func Decode(payload []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode serializes one message into a frame payload.
func Encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}
