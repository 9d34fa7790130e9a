package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/gradtrust/portal/internal/audit"
	"github.com/gradtrust/portal/internal/backend"
	"github.com/gradtrust/portal/internal/domain/account"
	"github.com/gradtrust/portal/internal/domain/merkle"
	"github.com/gradtrust/portal/internal/ethsig"
	"github.com/gradtrust/portal/internal/http/middlewares"
)

const (
	merkleFieldsMessage  = "Please provide all required fields: admin address, signature, and Merkle root."
	invalidSigMessage    = "Invalid signature"
	firstSigMessage      = "First signature recorded. Waiting for second admin signature."
	rootUpdatedMessage   = "Merkle root updated successfully!"
	invalidAddrMessage   = "Please enter a valid Ethereum address."
	missingFieldsMessage = "Please fill out all fields."
)

type AdminBackend interface {
	NewRoot(ctx context.Context) (string, error)
	PendingUpdates(ctx context.Context) (merkle.Pending, error)
	LastUpdate(ctx context.Context) (*merkle.UpdateResult, error)
	SubmitRootSignature(ctx context.Context, req merkle.SignRequest) (merkle.SignResponse, error)
	ClearLastUpdate(ctx context.Context) (string, error)

	CreateIssuer(ctx context.Context, req backend.CreateIssuerRequest) (string, error)

	ListAccounts(ctx context.Context) ([]account.Account, error)
	UpdateAccountRole(ctx context.Context, address string, role account.Role) (string, error)
	DeleteAccount(ctx context.Context, username string) (string, error)
}

type AdminHandler struct {
	backend AdminBackend
	audit   AuditEmitter
	log     *slog.Logger
}

func NewAdminHandler(b AdminBackend, a AuditEmitter, log *slog.Logger) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{backend: b, audit: orNoopAudit(a), log: log}
}

type merkleView struct {
	NewRoot    string
	Pending    merkle.Pending
	LastUpdate *merkle.UpdateResult
}

// loadMerkle fetches the admin dashboard data in parallel. Whatever loaded is
// returned even when one of the calls failed.
func (h *AdminHandler) loadMerkle(ctx context.Context) (merkleView, error) {
	var (
		v       merkleView
		pending merkle.Pending
		last    *merkle.UpdateResult
		g       errgroup.Group
	)

	g.Go(func() error {
		root, err := h.backend.NewRoot(ctx)
		v.NewRoot = root
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = h.backend.PendingUpdates(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		last, err = h.backend.LastUpdate(ctx)
		return err
	})

	err := g.Wait()

	v.Pending = pending
	v.LastUpdate = last
	if v.LastUpdate == nil && len(pending.Pending) == 0 {
		v.LastUpdate = pending.LastUpdate
	}
	return v, err
}

func (h *AdminHandler) renderDashboard(ctx *gin.Context, status int, data gin.H) {
	v, err := h.loadMerkle(ctx.Request.Context())
	if err != nil {
		h.log.WarnContext(ctx.Request.Context(), "admin_dashboard_partial", "err", err)
		if _, set := data["Error"]; !set {
			data["Error"] = "Could not load Merkle data: " + backend.Message(err, "backend unavailable")
		}
	}

	data["NewRoot"] = v.NewRoot
	data["Pending"] = v.Pending
	data["LastUpdate"] = v.LastUpdate
	if _, set := data["Address"]; !set {
		data["Address"] = sessionAddress(ctx)
	}

	render(ctx, status, "admin.html", "Admin", data)
}

func (h *AdminHandler) Dashboard(ctx *gin.Context) {
	h.renderDashboard(ctx, http.StatusOK, gin.H{})
}

// SubmitSignature records one admin's approval of the candidate root. The
// signature is checked locally first so a wrong wallet fails fast.
func (h *AdminHandler) SubmitSignature(ctx *gin.Context) {
	var req merkle.SignRequest
	if err := BindForm(ctx, &req); err != nil {
		msg := merkleFieldsMessage
		if hasOnlyRule(FieldErrors(err, &req), "wallet") {
			msg = invalidAddrMessage
		}
		h.renderDashboard(ctx, http.StatusBadRequest, gin.H{"Error": msg, "Address": req.AdminAddress})
		return
	}

	if err := ethsig.VerifySigner(req.AdminAddress, ethsig.MerkleRootMessage(req.MerkleRoot), req.Signature); err != nil {
		emitAudit(ctx, h.audit, audit.ActionRootSignature, "", req.MerkleRoot, err)
		h.renderDashboard(ctx, http.StatusBadRequest, gin.H{"Error": invalidSigMessage, "Address": req.AdminAddress})
		return
	}

	resp, err := h.backend.SubmitRootSignature(ctx.Request.Context(), req)
	emitAudit(ctx, h.audit, audit.ActionRootSignature, "", req.MerkleRoot, err)

	data := gin.H{"Address": req.AdminAddress}
	switch {
	case err != nil:
		h.logBackendErr(ctx, "merkle_signature_failed", err)
		data["Error"] = backend.Message(err, "Failed to submit signature.")
	case resp.NeedsSecondSignature:
		data["Success"] = firstSigMessage
	case resp.Completed():
		data["Success"] = rootUpdatedMessage
		data["Result"] = merkle.UpdateResult{MerkleRoot: resp.MerkleRoot, TransactionHash: resp.TransactionHash}
	default:
		data["Success"] = firstNonEmpty(resp.Message, "Signature submitted.")
	}

	h.renderDashboard(ctx, http.StatusOK, data)
}

func (h *AdminHandler) ClearLastUpdate(ctx *gin.Context) {
	msg, err := h.backend.ClearLastUpdate(ctx.Request.Context())
	emitAudit(ctx, h.audit, audit.ActionClearLastUpdate, "", "", err)

	if err != nil {
		h.logBackendErr(ctx, "clear_last_update_failed", err)
		redirectWithFlash(ctx, "/admin", "error", backend.Message(err, "Failed to clear the last update."))
		return
	}
	redirectWithFlash(ctx, "/admin", "success", firstNonEmpty(msg, "Last update cleared."))
}

type createIssuerForm struct {
	Name      string `form:"name" binding:"required,max=255"`
	Address   string `form:"address" binding:"required,wallet"`
	Signature string `form:"signature" binding:"required"`
}

func (h *AdminHandler) CreateIssuerPage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "admin_create_issuer.html", "Create issuer", gin.H{"Form": createIssuerForm{}})
}

func (h *AdminHandler) CreateIssuer(ctx *gin.Context) {
	var form createIssuerForm
	if err := BindForm(ctx, &form); err != nil {
		msg := missingFieldsMessage
		if hasOnlyRule(FieldErrors(err, &form), "wallet") {
			msg = invalidAddrMessage
		}
		render(ctx, http.StatusBadRequest, "admin_create_issuer.html", "Create issuer", gin.H{"Form": form, "Error": msg})
		return
	}

	// the signature covers the name as typed, so it is only trimmed
	form.Name = strings.TrimSpace(form.Name)
	form.Address = strings.TrimSpace(form.Address)

	name, err := h.backend.CreateIssuer(ctx.Request.Context(), backend.CreateIssuerRequest{
		Name:      form.Name,
		Address:   form.Address,
		Signature: form.Signature,
	})
	emitAudit(ctx, h.audit, audit.ActionIssuerCreate, "", form.Address, err)

	if err != nil {
		msg := "An error occurred while creating the issuer."
		if isAPIError(err) {
			msg = backend.Message(err, "Failed to create issuer.")
		} else {
			h.logBackendErr(ctx, "create_issuer_failed", err)
		}
		render(ctx, http.StatusOK, "admin_create_issuer.html", "Create issuer", gin.H{"Form": form, "Error": msg})
		return
	}

	render(ctx, http.StatusOK, "admin_create_issuer.html", "Create issuer", gin.H{
		"Form":    createIssuerForm{},
		"Success": `Issuer "` + name + `" created successfully!`,
	})
}

func (h *AdminHandler) logBackendErr(ctx *gin.Context, msg string, err error) {
	level := slog.LevelWarn
	if !isAPIError(err) {
		level = slog.LevelError
	}
	h.log.Log(ctx.Request.Context(), level, msg, "err", err)
}

func sessionAddress(ctx *gin.Context) string {
	if claims, ok := middlewares.ClaimsFromContext(ctx); ok {
		return claims.Address
	}
	return ""
}

// hasOnlyRule reports whether every failure is of the given rule.
func hasOnlyRule(fields []FieldError, rule string) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if f.Rule != rule {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
