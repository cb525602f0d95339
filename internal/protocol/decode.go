package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMalformed is returned for payloads that are not a valid response frame.
	ErrMalformed = errors.New("protocol: malformed response frame")

	// ErrUnknownCommand is returned for well-formed frames with an unknown command code.
	ErrUnknownCommand = fmt.Errorf("%w: unknown command code", ErrMalformed)
)

// variant describes how one response code is validated and built.
type variant struct {
	// coordinator-level responses must carry node_id 0.
	coordinator bool
	// param1 restricts the allowed values; nil accepts any integer.
	param1 func(int) bool
	build  func(h Header, p1 int) Response
}

func only(want int) func(int) bool { return func(v int) bool { return v == want } }

func oneOf(a, b int) func(int) bool { return func(v int) bool { return v == a || v == b } }

var variants = map[int]variant{
	CodeAck:             {build: func(h Header, p int) Response { return Ack{Header: h, Value: p} }},
	CodeNoAck:           {build: func(h Header, p int) Response { return NoAck{Header: h, Reason: p} }},
	CodePing:            {param1: only(0), build: func(h Header, _ int) Response { return Ping{h} }},
	CodeGetRestartCount: {build: func(h Header, p int) Response { return GetRestartCount{Header: h, Count: p} }},
	CodeSetRestartCount: {param1: only(0), build: func(h Header, _ int) Response { return SetRestartCount{h} }},
	CodeSanityCheck:     {param1: only(0), build: func(h Header, _ int) Response { return SanityCheck{h} }},
	CodeGetNonResponseCount: {coordinator: true,
		build: func(h Header, p int) Response { return GetNonResponseCount{Header: h, Count: p} }},
	CodeGetSamplingTime: {coordinator: true,
		build: func(h Header, p int) Response { return GetSamplingTime{Header: h, Seconds: p} }},
	CodeSetSamplingTime: {coordinator: true, param1: only(0),
		build: func(h Header, _ int) Response { return SetSamplingTime{h} }},
	CodePauseSampling: {coordinator: true, param1: only(0),
		build: func(h Header, _ int) Response { return PauseSampling{h} }},
	CodeResumeSampling: {coordinator: true, param1: only(1),
		build: func(h Header, _ int) Response { return ResumeSampling{h} }},
	CodeGetSamplingState: {coordinator: true, param1: oneOf(0, 1),
		build: func(h Header, p int) Response { return GetSamplingState{Header: h, Sampling: p == 1} }},
}

type wireResponse struct {
	Command *float64 `json:"command"`
	CoordID *float64 `json:"coord_id"`
	NodeID  *float64 `json:"node_id"`
	OrderID *float64 `json:"order_id"`
	Params  *struct {
		Param1 *float64 `json:"param1"`
	} `json:"params"`
}

// DecodeResponse parses an inbound payload into its response variant.
//
// Every error wraps ErrMalformed. Unknown fields are ignored.
func DecodeResponse(data []byte) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	code, err := requiredInt("command", w.Command)
	if err != nil {
		return nil, err
	}
	v, ok := variants[code]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownCommand, code)
	}

	coordID, err := requiredInt("coord_id", w.CoordID)
	if err != nil {
		return nil, err
	}
	nodeID, err := requiredInt("node_id", w.NodeID)
	if err != nil {
		return nil, err
	}
	if w.Params == nil {
		return nil, fmt.Errorf("%w: params missing", ErrMalformed)
	}
	p1, err := requiredInt("params.param1", w.Params.Param1)
	if err != nil {
		return nil, err
	}

	h := Header{CoordID: coordID, NodeID: nodeID}
	if w.OrderID != nil {
		order, err := requiredInt("order_id", w.OrderID)
		if err != nil {
			return nil, err
		}
		o := int64(order)
		h.OrderID = &o
	}

	if v.coordinator && nodeID != 0 {
		return nil, fmt.Errorf("%w: command %d is coordinator level but node_id is %d", ErrMalformed, code, nodeID)
	}
	if v.param1 != nil && !v.param1(p1) {
		return nil, fmt.Errorf("%w: command %d does not allow param1 %d", ErrMalformed, code, p1)
	}

	return v.build(h, p1), nil
}

func requiredInt(field string, v *float64) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: %s missing", ErrMalformed, field)
	}
	if *v != math.Trunc(*v) || math.Abs(*v) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrMalformed, field)
	}
	return int(*v), nil
}
