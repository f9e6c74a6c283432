package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/chiwei-platform/host-engine/internal/service"
	"github.com/go-chi/chi/v5"
)

const signatureHeader = "X-Hub-Signature-256"

type WebhookHandler struct {
	svc    *service.WebhookService
	appSvc *service.AppService
}

func NewWebhookHandler(svc *service.WebhookService, appSvc *service.AppService) *WebhookHandler {
	return &WebhookHandler{svc: svc, appSvc: appSvc}
}

type webhookSecretRequest struct {
	Secret string `json:"secret"`
}

// SetSecret 配置应用的 webhook 密钥，空串清除。密钥不会在任何读路径返回。
func (h *WebhookHandler) SetSecret(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	var req webhookSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.appSvc.SetWebhookSecret(r.Context(), name, req.Secret); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"configured": req.Secret != ""})
}

// Receive 处理推送回调。验签针对原始请求体，body 内容本身不解析。
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	app, err := h.svc.HandleWebhook(r.Context(), name, body, r.Header.Get(signatureHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
