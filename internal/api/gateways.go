package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/bridge"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/mqtt"
)

// gatewayStatus is one gateway link in the GET /gateways response.
type gatewayStatus struct {
	SerialNumber string `json:"serial_number"`
	Name         string `json:"name"`
	State        string `json:"state"`
	Devices      int    `json:"devices"`
}

// handleListGateways returns the configured gateway links with their live
// connection state and device counts.
func (s *Server) handleListGateways(w http.ResponseWriter, _ *http.Request) {
	gateways := make([]gatewayStatus, 0, len(s.gateways))
	for _, gw := range s.gateways {
		state := "unknown"
		if gw.Conn != nil {
			state = gw.Conn.State().String()
		}
		gateways = append(gateways, gatewayStatus{
			SerialNumber: gw.SerialNumber,
			Name:         gw.Name,
			State:        state,
			Devices:      len(s.registry.ListByGateway(gw.SerialNumber)),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"gateways": gateways, "count": len(gateways)})
}

// handleListGroups returns the stored DALI groups for one gateway.
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	sn := chi.URLParam(r, "sn")
	if !s.knownGateway(sn) {
		writeNotFound(w, "gateway not found")
		return
	}

	groups, err := s.registry.Groups(r.Context(), sn)
	if err != nil {
		writeInternalError(w, "failed to list groups")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}

// handleListScenes returns the stored DALI scenes for one gateway.
func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	sn := chi.URLParam(r, "sn")
	if !s.knownGateway(sn) {
		writeNotFound(w, "gateway not found")
		return
	}

	scenes, err := s.registry.Scenes(r.Context(), sn)
	if err != nil {
		writeInternalError(w, "failed to list scenes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"scenes": scenes, "count": len(scenes)})
}

// handleStartScan requests a bus scan on one gateway.
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	s.publishRequest(w, r, bridge.OpScan)
}

// handleStopScan cancels a running bus scan on one gateway.
func (s *Server) handleStopScan(w http.ResponseWriter, r *http.Request) {
	s.publishRequest(w, r, bridge.OpStopScan)
}

// handleDiscover requests a discovery refresh: re-read the gateway's device,
// group and scene inventory without a full bus scan.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	s.publishRequest(w, r, bridge.OpDiscover)
}

// publishRequest publishes a gateway-scoped operation request onto the bus
// and answers 202 with the response topic to watch.
func (s *Server) publishRequest(w http.ResponseWriter, r *http.Request, operation string) {
	sn := chi.URLParam(r, "sn")
	if !s.knownGateway(sn) {
		writeNotFound(w, "gateway not found")
		return
	}

	req := bridge.RequestMessage{
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		GatewaySN: sn,
	}

	if !s.publishToBus(w, mqtt.Topics{}.Request(operation), req) {
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"request_id":     req.RequestID,
		"response_topic": mqtt.Topics{}.Response(req.RequestID),
	})
}

// knownGateway reports whether serial is one of the configured gateways.
func (s *Server) knownGateway(serial string) bool {
	for _, gw := range s.gateways {
		if gw.SerialNumber == serial {
			return true
		}
	}
	return false
}
