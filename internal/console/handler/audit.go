package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/evco-audit/internal/domain"
	"go.uber.org/zap"
)

// AuditSubmitter is what the handler needs from the audit service.
type AuditSubmitter interface {
	Submit(ctx context.Context, req *domain.AuditLogRequest) domain.AuditEvent
}

type AuditHandler struct {
	service      AuditSubmitter
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewAuditHandler(s AuditSubmitter, maxBodyBytes int64, logger *zap.Logger) *AuditHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &AuditHandler{service: s, maxBodyBytes: maxBodyBytes, logger: logger.Named("audit-handler")}
}

// CreateLog accepts one audit entry and answers 204 with no body.
// POST /api/audit/logs
func (h *AuditHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer body.Close()

	req, err := domain.DecodeAuditLogRequest(body)
	if err != nil {
		h.logger.Debug("rejected audit payload", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event := h.service.Submit(r.Context(), req)
	h.logger.Debug("audit event accepted",
		zap.String("id", event.ID),
		zap.String("action_type", string(event.ActionType)))

	w.WriteHeader(http.StatusNoContent)
}
