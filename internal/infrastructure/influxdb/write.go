package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementCommandUsage   = "command_usage"
	MeasurementDeviceResponse = "device_response"
)

// CommandUsagePoint builds the point recorded for one accepted dispatch.
func CommandUsagePoint(commandID int, orderID int64, frames int, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementCommandUsage,
		map[string]string{
			"command_id": strconv.Itoa(commandID),
		},
		map[string]any{
			"order_id": orderID,
			"frames":   frames,
		},
		at,
	)
}

// DeviceResponsePoint builds the point recorded for one decoded response.
// Coordinator-level responses carry node "0".
func DeviceResponsePoint(code, coordID, nodeID, value int, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDeviceResponse,
		map[string]string{
			"command":  strconv.Itoa(code),
			"coord_id": strconv.Itoa(coordID),
			"node_id":  strconv.Itoa(nodeID),
		},
		map[string]any{
			"value": value,
		},
		at,
	)
}

// WriteCommandUsage queues a command_usage point.
func (c *Client) WriteCommandUsage(commandID int, orderID int64, frames int, at time.Time) {
	c.writePoint(CommandUsagePoint(commandID, orderID, frames, at))
}

// WriteDeviceResponse queues a device_response point.
func (c *Client) WriteDeviceResponse(code, coordID, nodeID, value int, at time.Time) {
	c.writePoint(DeviceResponsePoint(code, coordID, nodeID, value, at))
}

// WritePoint queues a custom point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// writePoint holds the read lock across the write so Close cannot shut
// the write API underneath it.
func (c *Client) writePoint(p *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return
	}
	c.writeAPI.WritePoint(p)
}
