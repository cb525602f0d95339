// Package influxdb writes FieldLink time series to InfluxDB v2.
//
// Two measurements are recorded:
//   - command_usage: one point per accepted dispatch, tagged by command id
//   - device_response: one point per decoded device response, tagged by
//     command code, coordinator and node
//
// Writes are non-blocking and batched according to influxdb.batch_size and
// influxdb.flush_interval. Batch failures are reported through SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without time series
//	}
//	defer client.Close()
//
//	client.WriteCommandUsage(8, orderID, 2, time.Now())
package influxdb
