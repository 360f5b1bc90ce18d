package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/auth"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/response"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/service"
)

type ingestRecordDTO struct {
	SourceRecordID string          `json:"source_record_id" validate:"max=256"`
	Payload        json.RawMessage `json:"payload" validate:"required"`
}

type ingestRequestDTO struct {
	Records []ingestRecordDTO `json:"records" validate:"required,min=1,max=10000,dive"`
}

type IngestHandler struct {
	landing  *service.LandingService
	validate *validator.Validate
}

func NewIngestHandler(landing *service.LandingService) *IngestHandler {
	return &IngestHandler{
		landing:  landing,
		validate: validator.New(),
	}
}

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	if _, ok := domain.LandingTableForSource(source); !ok {
		response.Error(w, r, http.StatusNotFound, "not_found", "unknown ingest source", nil)
		return
	}

	ac, ok := auth.FromRequest(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, auth.CodeAuthError, "missing credentials", nil)
		return
	}
	if !ac.HasScopes("ingest:" + source) {
		response.Error(w, r, http.StatusForbidden, auth.CodeInsufficientScope, "credential lacks required scope", nil)
		return
	}

	var req ingestRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "bad_request", "malformed request body", nil)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "bad_request", "invalid request", validationDetails(err))
		return
	}

	records := make([]service.RawRecord, len(req.Records))
	for i, rec := range req.Records {
		records[i] = service.RawRecord{SourceRecordID: rec.SourceRecordID, Payload: rec.Payload}
	}

	result, err := h.landing.Land(r.Context(), ac.TenantID, source, records)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "internal", "landing failed", nil)
		return
	}
	response.JSON(w, r, http.StatusAccepted, result)
}

func validationDetails(err error) interface{} {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make([]map[string]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, map[string]string{
			"field": fe.Namespace(),
			"rule":  fe.Tag(),
		})
	}
	return details
}
