// Package influxdb exports DALI telemetry to InfluxDB v2.
//
// The client wraps the official influxdb-client-go with non-blocking
// batched writes. Energy, illuminance, motion and gateway availability
// readings each get their own measurement, tagged by device and gateway
// serial so dashboards can slice per fixture or per gateway.
//
// All writes are fire-and-forget: failures surface through the error
// callback set with SetOnError, never through the write path. When the
// integration is disabled in config, Connect returns ErrDisabled and the
// bridge runs without telemetry export.
package influxdb
