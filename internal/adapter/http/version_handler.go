package http

import (
	"net/http"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/service"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
)

type VersionHandler struct {
	svc *service.VersionService
}

func NewVersionHandler(svc *service.VersionService) *VersionHandler {
	return &VersionHandler{svc: svc}
}

// versionView 在版本记录上附带人类可读的快照大小。
type versionView struct {
	*domain.Version
	Size string `json:"size,omitempty"`
}

func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	versions, err := h.svc.ListVersions(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]*versionView, 0, len(versions))
	for _, v := range versions {
		view := &versionView{Version: v}
		if v.SizeBytes > 0 {
			view.Size = humanize.Bytes(uint64(v.SizeBytes))
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *VersionHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	versionID := chi.URLParam(r, "version")
	app, err := h.svc.Rollback(r.Context(), name, versionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
