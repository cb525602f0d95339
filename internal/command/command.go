package command

import (
	"fmt"
	"math"
)

// TargetType says whether a command addresses a coordinator or its nodes.
type TargetType string

const (
	TargetCoordinator TargetType = "coordinator"
	TargetNode        TargetType = "node"
)

// ValueType is the numeric kind of a command parameter.
type ValueType string

const (
	ValueInt   ValueType = "int"
	ValueFloat ValueType = "float"
)

// ResponseType is the kind of value a device answers with.
type ResponseType string

const (
	ResponseInt   ResponseType = "int"
	ResponseFloat ResponseType = "float"
	ResponseBool  ResponseType = "bool"
	ResponseAck   ResponseType = "ack"
)

// Parameter describes one positional argument of a command.
// Min and Max are inclusive and optional.
type Parameter struct {
	Name    string    `json:"name"`
	Type    ValueType `json:"type"`
	Default float64   `json:"default"`
	Min     *float64  `json:"minValue,omitempty"`
	Max     *float64  `json:"maxValue,omitempty"`
}

// Check reports whether v is acceptable for this parameter.
func (p Parameter) Check(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("parameter %s must be a finite number", p.Name)
	}
	if p.Type == ValueInt && v != math.Trunc(v) {
		return fmt.Errorf("parameter %s must be an integer", p.Name)
	}
	if p.Min != nil && v < *p.Min {
		return fmt.Errorf("parameter %s must be >= %v", p.Name, *p.Min)
	}
	if p.Max != nil && v > *p.Max {
		return fmt.Errorf("parameter %s must be <= %v", p.Name, *p.Max)
	}
	return nil
}

// Command is an immutable catalog entry.
//
// ID is the key callers use; Code is the numeric command written into the
// device frame.
type Command struct {
	ID          int          `json:"id"`
	Code        int          `json:"code"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Target      TargetType   `json:"targetType"`
	Parameters  []Parameter  `json:"parameters"`
	Response    ResponseType `json:"responseType"`
}

func bound(v float64) *float64 { return &v }
