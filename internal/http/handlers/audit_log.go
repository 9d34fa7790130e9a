package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/audit"
)

type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

type AuditHandler struct {
	reader AuditReader
	log    *slog.Logger
}

func NewAuditHandler(reader AuditReader, log *slog.Logger) *AuditHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuditHandler{reader: reader, log: log}
}

func limitParam(ctx *gin.Context) int {
	n, err := strconv.Atoi(ctx.Query("limit"))
	if err != nil {
		return audit.DefaultListLimit
	}
	return audit.ClampLimit(n)
}

func (h *AuditHandler) Page(ctx *gin.Context) {
	events, err := h.reader.Recent(ctx.Request.Context(), limitParam(ctx))
	data := gin.H{"Events": events}
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "audit_list_failed", "err", err)
		data["Error"] = "Could not load the audit log."
	}
	render(ctx, http.StatusOK, "admin_audit.html", "Audit log", data)
}

func (h *AuditHandler) List(ctx *gin.Context) {
	events, err := h.reader.Recent(ctx.Request.Context(), limitParam(ctx))
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "audit_list_failed", "err", err)
		RespondInternal(ctx, "Could not load the audit log")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	RespondJSONWithWeakETag(ctx, http.StatusOK, gin.H{"events": events})
}
