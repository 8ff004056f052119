package api

import (
	"net/http"
)

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// HealthHandler reports liveness. It never probes the engine: once startup
// has loaded the model the process is considered healthy.
type HealthHandler struct {
	model string
}

func NewHealthHandler(model string) *HealthHandler {
	return &HealthHandler{model: model}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Model: h.model})
}
