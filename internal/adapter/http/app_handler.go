package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/service"
	"github.com/go-chi/chi/v5"
)

// ResourceSource 提供最近一轮资源采样，列表接口把它挂在应用视图上。
type ResourceSource interface {
	Snapshot() map[string]domain.ResourceSample
}

type AppHandler struct {
	svc     *service.AppService
	sampler ResourceSource
}

func NewAppHandler(svc *service.AppService, sampler ResourceSource) *AppHandler {
	return &AppHandler{svc: svc, sampler: sampler}
}

func (h *AppHandler) List(w http.ResponseWriter, r *http.Request) {
	var samples map[string]domain.ResourceSample
	if h.sampler != nil {
		samples = h.sampler.Snapshot()
	}
	apps, err := h.svc.ListApps(r.Context(), samples)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *AppHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	app, err := h.svc.GetApp(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *AppHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	if err := h.svc.DeleteApp(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (h *AppHandler) Start(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	if err := h.svc.StartApp(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"started": name})
}

func (h *AppHandler) Stop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	if err := h.svc.StopApp(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stopped": name})
}

func (h *AppHandler) Restart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	if err := h.svc.RestartApp(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"restarted": name})
}

func (h *AppHandler) GetEnv(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	envs, err := h.svc.GetEnv(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

func (h *AppHandler) SetEnv(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	var envs map[string]string
	if err := json.NewDecoder(r.Body).Decode(&envs); err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.SetEnv(r.Context(), name, envs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

type autoRestartRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *AppHandler) SetAutoRestart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	var req autoRestartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.SetAutoRestart(r.Context(), name, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"auto_restart": req.Enabled})
}

func (h *AppHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.svc.ListEvents(r.Context(), name, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
