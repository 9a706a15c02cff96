package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/bridge"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/device"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/mqtt"
)

// handleListDevices returns the device inventory.
//
// Query parameters:
//   - gateway: filter by gateway serial number
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []device.Record
	if sn := r.URL.Query().Get("gateway"); sn != "" {
		devices = s.registry.ListByGateway(sn)
	} else {
		devices = s.registry.List()
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// commandRequest is the body of POST /devices/{id}/command.
type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// handleDeviceCommand publishes a device command onto the Gray Logic bus.
//
// The command takes the same path Core traffic takes: the bridge picks it up
// from the command topic and answers on the ack topic. The API does not wait
// for the ack; clients needing confirmation subscribe to the returned topic.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	if _, err := s.registry.Get(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	cmd := bridge.CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		DeviceID:   id,
		Command:    req.Command,
		Parameters: req.Parameters,
		Source:     "api",
	}

	if !s.publishToBus(w, mqtt.Topics{}.Command(id), cmd) {
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"command_id": cmd.ID,
		"ack_topic":  mqtt.Topics{}.Ack(id),
	})
}

// publishToBus marshals v and publishes it to the given topic at QoS 1.
// On failure it writes the error response and returns false.
func (s *Server) publishToBus(w http.ResponseWriter, topic string, v any) bool {
	if s.bus == nil || !s.bus.IsConnected() {
		writeUnavailable(w, "bus not connected")
		return false
	}

	payload, err := json.Marshal(v)
	if err != nil {
		writeInternalError(w, "failed to encode message")
		return false
	}

	if err := s.bus.Publish(topic, payload, 1, false); err != nil {
		s.logger.Error("bus publish from API failed", "topic", topic, "error", err)
		writeUnavailable(w, "bus publish failed")
		return false
	}

	return true
}
