package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEnergy records a cumulative energy reading from a DALI device.
//
// Gateways report energy in watt-hours via the reportEnergy message.
// The write is non-blocking; points are batched and flushed asynchronously.
//
// Parameters:
//   - deviceID: DALI device identifier (e.g., "01010101DA0C8E5A6B21")
//   - gatewaySN: Serial of the gateway that produced the reading
//   - energyWh: Cumulative energy consumption in watt-hours
func (c *Client) WriteEnergy(deviceID, gatewaySN string, energyWh float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dali_energy",
		map[string]string{
			"device_id":  deviceID,
			"gateway_sn": gatewaySN,
		},
		map[string]interface{}{
			"energy_wh": energyWh,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteIlluminance records a lux reading from an illuminance sensor.
func (c *Client) WriteIlluminance(deviceID, gatewaySN string, lux float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dali_illuminance",
		map[string]string{
			"device_id":  deviceID,
			"gateway_sn": gatewaySN,
		},
		map[string]interface{}{
			"lux": lux,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteMotion records a motion sensor state change.
//
// The state string is stored as a field alongside an occupied flag so
// dashboards can graph occupancy without parsing the enumeration.
//
// Parameters:
//   - deviceID: DALI device identifier
//   - gatewaySN: Serial of the reporting gateway
//   - state: Motion state name (e.g., "motion", "vacant", "presence")
//   - occupied: Whether the state indicates an occupied space
func (c *Client) WriteMotion(deviceID, gatewaySN, state string, occupied bool) {
	if !c.IsConnected() {
		return
	}

	occupiedVal := 0
	if occupied {
		occupiedVal = 1
	}

	point := write.NewPoint(
		"dali_motion",
		map[string]string{
			"device_id":  deviceID,
			"gateway_sn": gatewaySN,
		},
		map[string]interface{}{
			"state":    state,
			"occupied": occupiedVal,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteGatewayAvailability records a gateway link state transition.
//
// Useful for tracking link stability over time and correlating device
// gaps with gateway outages.
func (c *Client) WriteGatewayAvailability(gatewaySN string, online bool) {
	if !c.IsConnected() {
		return
	}

	onlineVal := 0
	if online {
		onlineVal = 1
	}

	point := write.NewPoint(
		"dali_gateway",
		map[string]string{
			"gateway_sn": gatewaySN,
		},
		map[string]interface{}{
			"online": onlineVal,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
