package dispatch

import (
	"encoding/json"
	"fmt"
	"math"
)

// Request is one dispatch call after structural parsing.
type Request struct {
	CommandID      int
	CoordinatorIDs []int
	NodeIDs        []int
	Parameters     []float64

	// RequestedBy is the id of the authenticated user, 0 if unknown.
	RequestedBy int
}

// wireRequest mirrors the JSON body. Numbers decode as float64 so that
// non-integer ids are caught here rather than silently truncated.
type wireRequest struct {
	CommandID      *float64  `json:"commandId"`
	CoordinatorIDs []float64 `json:"coordinatorIds"`
	NodeIDs        []float64 `json:"nodeIds"`
	Parameters     []float64 `json:"parameters"`
}

// ParseRequest decodes a JSON dispatch body. commandId and coordinatorIds
// are required; nodeIds and parameters are optional. Unknown fields are
// ignored.
func ParseRequest(body []byte) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return Request{}, invalidArguments()
	}
	if w.CommandID == nil || w.CoordinatorIDs == nil {
		return Request{}, invalidArguments()
	}

	commandID, ok := asInt(*w.CommandID)
	if !ok {
		return Request{}, invalidArguments()
	}
	coordinators, ok := asInts(w.CoordinatorIDs)
	if !ok {
		return Request{}, invalidArguments()
	}
	nodes, ok := asInts(w.NodeIDs)
	if !ok {
		return Request{}, invalidArguments()
	}

	return Request{
		CommandID:      commandID,
		CoordinatorIDs: coordinators,
		NodeIDs:        nodes,
		Parameters:     w.Parameters,
	}, nil
}

func invalidArguments() error {
	return fmt.Errorf("%w: missing or invalid arguments", ErrValidation)
}

func asInt(f float64) (int, bool) {
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func asInts(fs []float64) ([]int, bool) {
	if fs == nil {
		return nil, true
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		v, ok := asInt(f)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// dedupe drops repeated ids, keeping first-seen order.
func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
