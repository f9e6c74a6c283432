package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/service"
)

type DeployHandler struct {
	svc *service.DeployService
}

func NewDeployHandler(svc *service.DeployService) *DeployHandler {
	return &DeployHandler{svc: svc}
}

// Deploy 接受两种形态：
//   - multipart/form-data：name 字段 + archive 文件（zip 或 tar.gz）
//   - application/json：{name, git_repo, git_branch}
func (h *DeployHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	req, err := parseDeployRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	app, err := h.svc.Deploy(r.Context(), *req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func parseDeployRequest(r *http.Request) (*service.DeployRequest, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		file, _, err := r.FormFile("archive")
		if err != nil {
			return nil, fmt.Errorf("%w: archive file required", domain.ErrInvalidInput)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, err
		}
		return &service.DeployRequest{
			Name:    r.FormValue("name"),
			Archive: data,
		}, nil
	}

	var req service.DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return &req, nil
}
