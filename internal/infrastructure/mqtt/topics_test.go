package mqtt

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"health", topics.Health(), "graylogic/health/dali"},
		{"device state", topics.DeviceState("01010002DA0C"), "graylogic/state/dali/01010002DA0C"},
		{"device event", topics.DeviceEvent("03000109DA0C"), "graylogic/event/dali/03000109DA0C"},
		{"device availability", topics.DeviceAvailability("01010002DA0C"), "graylogic/availability/dali/01010002DA0C"},
		{"gateway availability", topics.GatewayAvailability("DA0C8E5A6B21"), "graylogic/availability/dali/gateway/DA0C8E5A6B21"},
		{"discovery", topics.Discovery(), "graylogic/discovery/dali"},
		{"command", topics.Command("01010002DA0C"), "graylogic/command/dali/01010002DA0C"},
		{"all commands", topics.AllCommands(), "graylogic/command/dali/+"},
		{"ack", topics.Ack("01010002DA0C"), "graylogic/ack/dali/01010002DA0C"},
		{"scan progress", topics.ScanProgress("DA0C8E5A6B21"), "graylogic/event/dali/scan/DA0C8E5A6B21"},
		{"request", topics.Request("scan"), "graylogic/request/dali/scan"},
		{"all requests", topics.AllRequests(), "graylogic/request/dali/+"},
		{"response", topics.Response("req-42"), "graylogic/response/dali/req-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPayloadBuilders(t *testing.T) {
	online := buildOnlinePayload("dali-bridge-1")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, `"client_id":"dali-bridge-1"`) {
		t.Errorf("online payload = %s", online)
	}

	offline := buildOfflinePayload("dali-bridge-1")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", offline)
	}
}
