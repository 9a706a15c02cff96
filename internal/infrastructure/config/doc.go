// Package config provides configuration loading for the DALI bridge.
//
// Configuration is loaded from a YAML file with environment variable
// overrides (DALIBRIDGE_* pattern). Defaults are applied before the file
// is parsed, so a minimal config only needs the gateway list.
//
// # Example
//
//	bridge:
//	  id: "dali-bridge-01"
//	gateways:
//	  - serial_number: "DA0C8E5A6B21"
//	    host: "192.168.1.50"
//	    username: "gw"
//	    password: "secret"
//	mqtt:
//	  broker:
//	    host: "localhost"
//	    port: 1883
//
// Secrets (gateway passwords, broker credentials, InfluxDB tokens) should be
// injected via environment variables rather than committed to the file.
package config
