package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/audit"
	"github.com/gradtrust/portal/internal/http/middlewares"
)

// AuditEmitter records portal actions; audit.Publisher satisfies it.
type AuditEmitter interface {
	Emit(ctx context.Context, e audit.Event)
}

type noopAudit struct{}

func (noopAudit) Emit(context.Context, audit.Event) {}

func orNoopAudit(a AuditEmitter) AuditEmitter {
	if a == nil {
		return noopAudit{}
	}
	return a
}

// emitAudit records action against target for whoever is signed in. actor
// overrides the session user for pre-login actions.
func emitAudit(ctx *gin.Context, a AuditEmitter, action audit.Action, actor, target string, err error) {
	e := audit.Event{
		Actor:     actor,
		Action:    action,
		Target:    target,
		Outcome:   audit.OutcomeOf(err),
		RequestID: requestIDFrom(ctx),
		ClientIP:  ctx.ClientIP(),
		Device:    audit.DeviceLabel(ctx.Request.UserAgent()),
	}

	if claims, ok := middlewares.ClaimsFromContext(ctx); ok {
		if e.Actor == "" {
			e.Actor = claims.Username
		}
		e.Address = claims.Address
		e.Role = claims.Role
	}
	if err != nil {
		e.Detail = err.Error()
	}

	a.Emit(ctx.Request.Context(), e)
}
