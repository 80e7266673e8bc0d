package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/evco-audit/internal/domain"
)

type fakeSubmitter struct {
	reqs []*domain.AuditLogRequest
}

func (f *fakeSubmitter) Submit(_ context.Context, req *domain.AuditLogRequest) domain.AuditEvent {
	f.reqs = append(f.reqs, req)
	return domain.AuditEvent{ID: "evt-1", ActionType: req.ActionType}
}

func TestCreateLog(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		maxBytes   int64
		wantStatus int
		wantBody   string
		wantSubmit bool
	}{
		{
			name:       "accepted",
			body:       `{"actorRole":"STAFF","actionType":"DOCUMENT_APPROVED","targetEntityId":"doc-123"}`,
			wantStatus: http.StatusNoContent,
			wantSubmit: true,
		},
		{
			name:       "empty body",
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid payload: request body is empty\n",
		},
		{
			name:       "validation message is returned",
			body:       `{"targetEntityId":"doc-123"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid payload: actionType is required\n",
		},
		{
			name:       "oversized body",
			body:       `{"actionType":"DOCUMENT_APPROVED","targetEntityId":"doc-123","details":"` + strings.Repeat("x", 256) + `"}`,
			maxBytes:   64,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			h := NewAuditHandler(sub, tt.maxBytes, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/api/audit/logs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.CreateLog(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantSubmit {
				require.Len(t, sub.reqs, 1)
				assert.Equal(t, domain.ActionDocumentApproved, sub.reqs[0].ActionType)
				assert.Empty(t, rec.Body.String())
			} else {
				assert.Empty(t, sub.reqs)
			}
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}
