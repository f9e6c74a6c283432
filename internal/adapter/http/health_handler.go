package http

import (
	"net/http"

	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/chiwei-platform/host-engine/internal/service"
	"github.com/go-chi/chi/v5"
)

type HealthHandler struct {
	appSvc *service.AppService
	prober port.Prober
	sysSvc *service.SystemService
}

func NewHealthHandler(appSvc *service.AppService, prober port.Prober, sysSvc *service.SystemService) *HealthHandler {
	return &HealthHandler{appSvc: appSvc, prober: prober, sysSvc: sysSvc}
}

// AppHealth 按需探测单个应用，与周期探测走同一条路径。
func (h *HealthHandler) AppHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	app, err := h.appSvc.GetApp(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.prober.ProbeApp(r.Context(), app))
}

func (h *HealthHandler) Platform(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sysSvc.Health(r.Context()))
}
