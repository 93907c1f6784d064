// Package tcf implements the wire protocol clients speak to the agent:
// line-oriented frames terminated by MARKER_EOM, carrying one or more
// JSON values separated by MARKER_EOA, in the three message shapes
// (command, reply, event) described in spec §6.
//
// Grounded in server shape on lookbusy1344-arm_emulator's api/server.go
// (net/http.Server lifecycle, registerRoutes-style wiring) but the
// framing itself follows the original prashant-mehta/tcf_agent C
// implementation's line protocol (agent/tcf/framework), since the
// teacher never speaks this wire format.
package tcf

import "encoding/json"

// MarkerEOM terminates a frame; MarkerEOA separates JSON values within
// a frame (spec §6 "Wire format").
const (
	MarkerEOM = byte(0x03)
	MarkerEOA = byte(0x00)
)

// Kind distinguishes the three message shapes on the wire.
type Kind byte

const (
	KindCommand Kind = 'C'
	KindReply   Kind = 'R'
	KindEvent   Kind = 'E'
)

// Message is a decoded frame. Exactly one of (Service+Command) or
// (Service+Name) is populated depending on Kind; Err applies only to
// KindReply.
type Message struct {
	Kind    Kind
	Token   string
	Service string
	Command string // KindCommand
	Name    string // KindEvent
	Err     json.RawMessage
	Args    []json.RawMessage
}

// NewCommand builds a command frame.
func NewCommand(token, service, command string, args ...any) (Message, error) {
	raw, err := marshalAll(args)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindCommand, Token: token, Service: service, Command: command, Args: raw}, nil
}

// NewReply builds a reply frame. errResult may be nil for success.
func NewReply(token string, errResult error, result ...any) (Message, error) {
	raw, err := marshalAll(result)
	if err != nil {
		return Message{}, err
	}
	m := Message{Kind: KindReply, Token: token, Args: raw}
	if errResult != nil {
		errRaw, err := json.Marshal(map[string]string{"Format": errResult.Error()})
		if err != nil {
			return Message{}, err
		}
		m.Err = errRaw
	}
	return m, nil
}

// NewEvent builds an event frame.
func NewEvent(service, name string, args ...any) (Message, error) {
	raw, err := marshalAll(args)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindEvent, Service: service, Name: name, Args: raw}, nil
}

func marshalAll(args []any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// DecodeArg unmarshals the i'th argument into v.
func (m Message) DecodeArg(i int, v any) error {
	if i < 0 || i >= len(m.Args) {
		return ErrNoSuchArg
	}
	return json.Unmarshal(m.Args[i], v)
}
