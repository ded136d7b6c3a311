package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/registry"
)

// handleRegisterDevice handles POST /api/v1/devices/register.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var reg registry.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	device, err := s.registry.Register(r.Context(), reg, time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

// handleListDevices handles GET /api/v1/devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.DeviceFilter{
		Trust: model.TrustState(q.Get("trust")),
	}
	if filter.Trust != "" && !filter.Trust.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid trust state: "+string(filter.Trust))
		return
	}
	var err error
	filter.Limit, filter.Offset, err = parsePagination(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	devices, total, err := s.registry.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"total":   total,
	})
}

// handleGetDevice handles GET /api/v1/devices/{id}.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// handleHeartbeat handles POST /api/v1/devices/{id}/heartbeat.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Heartbeat(r.Context(), r.PathValue("id"), time.Now().UTC()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSetTrust handles POST /api/v1/devices/{id}/trust.
func (s *Server) handleSetTrust(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Trust model.TrustState `json:"trust"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if err := s.registry.SetTrust(r.Context(), r.PathValue("id"), body.Trust); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
