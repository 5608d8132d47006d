// Package httpapi exposes the lot identity operations over HTTP for workflow
// surfaces that live outside this process.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lottrace/internal/core"
	"lottrace/internal/export"
	"lottrace/internal/lotseq"
	"lottrace/pkg/domain"
)

// Handler routes the lot identity HTTP surface.
type Handler struct {
	Service  *core.Service
	Exporter *export.Exporter
}

// NewHandler constructs the HTTP handler over the lot service.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "lot service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodPost && path == "/api/v1/lots/resolve":
		h.handleResolve(w, r)
	case r.Method == http.MethodGet && path == "/api/v1/lots/mappings":
		writeJSON(w, http.StatusOK, map[string]any{"mappings": h.Service.ListMappings()})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/v1/lots/mappings/"):
		h.handleGetMapping(w, strings.TrimPrefix(path, "/api/v1/lots/mappings/"))
	case r.Method == http.MethodPost && path == "/api/v1/lots/sequence":
		h.handleSequence(w, r)
	case r.Method == http.MethodPost && path == "/api/v1/lots/mint":
		h.handleMint(w, r)
	case r.Method == http.MethodGet && path == "/api/v1/lots/generated":
		writeJSON(w, http.StatusOK, map[string]any{"generated": h.Service.ListGeneratedLots()})
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/api/v1/lots/generated/") && strings.HasSuffix(path, "/used"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/lots/generated/"), "/used")
		h.handleMarkUsed(w, r, id)
	case r.Method == http.MethodGet && path == "/api/v1/jobs/decode":
		h.handleDecode(w, r)
	case r.Method == http.MethodGet && path == "/api/v1/jobs/label":
		h.handleLabel(w, r)
	case path == "/api/v1/archive/runs":
		h.handleArchive(w, r)
	default:
		http.NotFound(w, r)
	}
}

type resolveRequest struct {
	JobID      string `json:"job_id"`
	PartNumber string `json:"part_number,omitempty"`
	PartName   string `json:"part_name,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	Consumer   string `json:"consumer,omitempty"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.JobID == "" {
		writeError(w, http.StatusBadRequest, "job_id required")
		return
	}
	consumer, ok := parseComponent(req.Consumer)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown consumer component")
		return
	}
	res, err := h.Service.Resolve(r.Context(), req.JobID, domain.Hints{
		PartNumber: req.PartNumber,
		PartName:   req.PartName,
		OrderID:    req.OrderID,
	}, consumer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resolution": res})
}

func (h *Handler) handleGetMapping(w http.ResponseWriter, jobID string) {
	if jobID == "" {
		writeError(w, http.StatusNotFound, "mapping not found")
		return
	}
	mapping, ok := h.Service.GetMapping(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "mapping not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mapping": mapping})
}

type sequenceRequest struct {
	PartNumber string `json:"part_number"`
	OrderID    string `json:"order_id,omitempty"`
}

func (h *Handler) handleSequence(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	value, err := h.Service.MintSequentialLot(r.Context(), req.PartNumber, req.OrderID)
	if err != nil {
		status := http.StatusBadRequest
		if isStoreUnavailable(err) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scope_key": domain.ScopeKey(req.PartNumber, req.OrderID),
		"sequence":  value,
	})
}

type mintRequest struct {
	JobID        string         `json:"job_id,omitempty"`
	TaskID       string         `json:"task_id,omitempty"`
	MaterialType string         `json:"material_type,omitempty"`
	TaskName     string         `json:"task_name,omitempty"`
	Config       *lotseq.Config `json:"config,omitempty"`
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.Service.MintLot(r.Context(), lotseq.MintRequest{
		JobID:        req.JobID,
		TaskID:       req.TaskID,
		MaterialType: req.MaterialType,
		TaskName:     req.TaskName,
		Config:       req.Config,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mint": map[string]any{
		"code":     res.Code,
		"sequence": res.Sequence,
		"degraded": res.Degraded,
		"record":   res.Record,
	}})
}

func (h *Handler) handleMarkUsed(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeError(w, http.StatusNotFound, "generated lot not found")
		return
	}
	lot, err := h.Service.MarkGeneratedLotUsed(r.Context(), id)
	if err != nil {
		if domain.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "generated lot not found")
			return
		}
		status := http.StatusBadRequest
		if isStoreUnavailable(err) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"generated": lot})
}

func (h *Handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id required")
		return
	}
	comps, ok := h.Service.DecodeJobID(jobID)
	payload := map[string]any{"job_id": jobID, "decoded": ok}
	if ok {
		payload["order_id"] = comps.OrderID
		payload["item_id"] = comps.ItemID
		if comps.HasLot() {
			payload["lot_sequence"] = *comps.LotSequence
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleLabel(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id required")
		return
	}
	label := h.Service.DisplayLabel(jobID, r.URL.Query().Get("part_name"))
	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "label": label})
}

type archiveRequest struct {
	Formats []string `json:"formats,omitempty"`
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	if h.Exporter == nil {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req archiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && r.ContentLength > 0 {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		formats := make([]export.Format, 0, len(req.Formats))
		for _, f := range req.Formats {
			formats = append(formats, export.Format(f))
		}
		manifest, err := h.Exporter.Run(r.Context(), formats...)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"manifest": manifest})
	case http.MethodGet:
		manifests, err := h.Exporter.Manifests(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": manifests})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func parseComponent(raw string) (domain.Component, bool) {
	if raw == "" {
		return domain.ComponentTraceabilityTask, true
	}
	for _, c := range domain.KnownComponents() {
		if string(c) == raw {
			return c, true
		}
	}
	return "", false
}

func isStoreUnavailable(err error) bool {
	return errors.Is(err, domain.ErrStoreUnavailable)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
