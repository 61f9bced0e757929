package handlers

import (
	"net/http"

	"github.com/ebuka-odih/nyem-sub003/internal/transport/http/dto"
	httperrors "github.com/ebuka-odih/nyem-sub003/internal/transport/http/errors"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Get(w http.ResponseWriter, _ *http.Request) {
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}
