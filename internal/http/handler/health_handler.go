package handler

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/response"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			response.Error(w, r, http.StatusServiceUnavailable, "dependency_unready", "database unreachable", nil)
			return
		}
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
