package protocol

import (
	"encoding/json"
	"fmt"
)

// FrameSlots is the fixed number of parameter slots in a command frame.
const FrameSlots = 4

// Params carries positional command arguments. Unused slots stay 0.
type Params struct {
	Param1 float64 `json:"param1"`
	Param2 float64 `json:"param2"`
	Param3 float64 `json:"param3"`
	Param4 float64 `json:"param4"`
}

// DeviceFrame is one outbound command addressed to a coordinator
// (NodeID 0) or to one of its nodes.
type DeviceFrame struct {
	Command    int    `json:"command"`
	BuildingID int    `json:"building_id"`
	CoordID    int    `json:"coord_id"`
	NodeID     int    `json:"node_id"`
	OrderID    int64  `json:"order_id"`
	Params     Params `json:"params"`
}

// NewFrame builds a frame, filling parameter slots in order.
func NewFrame(code, buildingID, coordID, nodeID int, orderID int64, values []float64) (DeviceFrame, error) {
	if len(values) > FrameSlots {
		return DeviceFrame{}, fmt.Errorf("protocol: %d parameters exceed %d frame slots", len(values), FrameSlots)
	}

	var slots [FrameSlots]float64
	copy(slots[:], values)

	return DeviceFrame{
		Command:    code,
		BuildingID: buildingID,
		CoordID:    coordID,
		NodeID:     nodeID,
		OrderID:    orderID,
		Params: Params{
			Param1: slots[0],
			Param2: slots[1],
			Param3: slots[2],
			Param4: slots[3],
		},
	}, nil
}

// Encode serialises the frame to its JSON wire form.
func (f DeviceFrame) Encode() ([]byte, error) {
	return json.Marshal(f)
}
