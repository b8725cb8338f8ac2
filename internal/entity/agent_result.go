package entity

import "encoding/json"

// AgentResult is the closed set of shapes a booking agent can hand back.
// Decoding raw agent output into one of these variants happens once, at the
// adapter boundary; everything downstream switches on the concrete type.
type AgentResult interface {
	agentResult()
}

// StatusValue is an enum-like value that already carries a status.
type StatusValue struct {
	Status BookingStatus
}

// Mapping is a structured object, typically the agent's final JSON output.
type Mapping map[string]any

// List is an agent history; later entries describe later steps.
type List []AgentResult

// Text is free-form text returned by the agent.
type Text string

// Opaque is any value none of the other variants describe.
type Opaque struct {
	Value any
}

func (StatusValue) agentResult() {}
func (Mapping) agentResult()     {}
func (List) agentResult()        {}
func (Text) agentResult()        {}
func (Opaque) agentResult()      {}

// ResultFromValue classifies a decoded JSON value.
func ResultFromValue(v any) AgentResult {
	switch t := v.(type) {
	case nil:
		return Opaque{}
	case AgentResult:
		return t
	case BookingStatus:
		return StatusValue{Status: t}
	case string:
		return Text(t)
	case map[string]any:
		return Mapping(t)
	case []any:
		list := make(List, 0, len(t))
		for _, item := range t {
			list = append(list, ResultFromValue(item))
		}
		return list
	default:
		return Opaque{Value: v}
	}
}

// ResultFromJSON decodes raw JSON into a variant. Undecodable input is kept
// as Text so textual heuristics can still run on it.
func ResultFromJSON(raw []byte) AgentResult {
	if len(raw) == 0 {
		return Opaque{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Text(raw)
	}
	return ResultFromValue(v)
}

// ResultValue turns a variant back into a plain value suitable for JSON
// responses.
func ResultValue(r AgentResult) any {
	switch t := r.(type) {
	case StatusValue:
		return string(t.Status)
	case Mapping:
		return map[string]any(t)
	case List:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, ResultValue(item))
		}
		return out
	case Text:
		return string(t)
	case Opaque:
		return t.Value
	}
	return nil
}
