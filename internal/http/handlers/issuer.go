package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/audit"
	"github.com/gradtrust/portal/internal/backend"
	"github.com/gradtrust/portal/internal/domain/credential"
	"github.com/gradtrust/portal/internal/ethsig"
)

const (
	issueFieldsMessage  = "Please fill out all fields and select a PDF file"
	issueSuccessMessage = "Credential Issued Successfully!"
	registeredMessage   = "Registration successful!"
	pdfField            = "pdf"
)

type IssuerBackend interface {
	Entropy(ctx context.Context, issuerAddress string) (string, error)
	IssueCredential(ctx context.Context, hash string, req credential.IssueRequest) (credential.IssueResult, error)
	RegisterIssuer(ctx context.Context, req backend.RegisterIssuerRequest) error
}

// EntropySource is the optional HSM used when registering issuers.
type EntropySource interface {
	Enabled() bool
	Entropy(ctx context.Context) (string, error)
}

type IssuerHandler struct {
	backend     IssuerBackend
	entropy     EntropySource
	credentials CredentialLookup
	audit       AuditEmitter
	log         *slog.Logger
}

func NewIssuerHandler(b IssuerBackend, entropy EntropySource, creds CredentialLookup, a AuditEmitter, log *slog.Logger) *IssuerHandler {
	if log == nil {
		log = slog.Default()
	}
	return &IssuerHandler{backend: b, entropy: entropy, credentials: creds, audit: orNoopAudit(a), log: log}
}

func (h *IssuerHandler) IssuePage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "issuer.html", "Issue credential", gin.H{
		"Form":   credential.IssueRequest{IssuerAddress: sessionAddress(ctx)},
		"Result": (*credential.IssueResult)(nil),
	})
}

// Issue hashes the uploaded PDF with the issuer's entropy and records only
// the hash with the backend.
func (h *IssuerHandler) Issue(ctx *gin.Context) {
	var form credential.IssueRequest
	bindErr := BindForm(ctx, &form)
	file, fileErr := ctx.FormFile(pdfField)

	fail := func(status int, msg string) {
		render(ctx, status, "issuer.html", "Issue credential", gin.H{
			"Form":   form,
			"Result": (*credential.IssueResult)(nil),
			"Error":  msg,
		})
	}

	if err := errors.Join(bindErr, fileErr); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(http.StatusRequestEntityTooLarge, uploadMessage(err))
			return
		}

		msg := issueFieldsMessage
		if fileErr == nil && hasOnlyRule(FieldErrors(bindErr, &form), "wallet") {
			msg = invalidAddrMessage
		}
		fail(http.StatusBadRequest, msg)
		return
	}

	form.HolderAddress = strings.TrimSpace(form.HolderAddress)
	form.IssuerAddress = strings.TrimSpace(form.IssuerAddress)
	form.IssuerName = strings.TrimSpace(form.IssuerName)
	form.Metadata = strings.TrimSpace(form.Metadata)

	rctx := ctx.Request.Context()

	entropy, err := h.backend.Entropy(rctx, form.IssuerAddress)
	if err != nil {
		h.log.WarnContext(rctx, "issuer_entropy_failed", "issuer", form.IssuerAddress, "err", err)
		fail(http.StatusOK, backend.Message(err, "Failed to fetch issuer entropy."))
		return
	}

	hash, err := hashUpload(file, entropy)
	if err != nil {
		fail(http.StatusBadRequest, uploadMessage(err))
		return
	}

	result, err := h.backend.IssueCredential(rctx, hash, form)
	emitAudit(ctx, h.audit, audit.ActionCredentialIssue, "", hash, err)

	if err != nil {
		h.log.WarnContext(rctx, "issue_credential_failed", "holder", form.HolderAddress, "err", err)
		fail(http.StatusOK, backend.Message(err, "Failed to issue credential"))
		return
	}

	if h.credentials != nil {
		h.credentials.Invalidate(rctx, form.HolderAddress)
	}

	render(ctx, http.StatusOK, "issuer.html", "Issue credential", gin.H{
		"Form":    credential.IssueRequest{IssuerAddress: form.IssuerAddress, IssuerName: form.IssuerName},
		"Result":  &result,
		"Success": issueSuccessMessage,
	})
}

type registerIssuerForm struct {
	Address   string `form:"address" binding:"required,wallet"`
	Name      string `form:"name" binding:"required,max=255"`
	Signature string `form:"signature" binding:"required"`
}

func (h *IssuerHandler) RegisterPage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "issuer_register.html", "Register issuer", gin.H{
		"Form": registerIssuerForm{Address: sessionAddress(ctx)},
	})
}

func (h *IssuerHandler) Register(ctx *gin.Context) {
	var form registerIssuerForm
	if err := BindForm(ctx, &form); err != nil {
		msg := missingFieldsMessage
		if hasOnlyRule(FieldErrors(err, &form), "wallet") {
			msg = invalidAddrMessage
		}
		h.renderRegister(ctx, http.StatusBadRequest, form, gin.H{"Error": msg})
		return
	}

	form.Address = strings.TrimSpace(form.Address)
	form.Name = strings.TrimSpace(form.Name)

	if err := ethsig.VerifySigner(form.Address, ethsig.IssuerRegistrationMessage(form.Address, form.Name), form.Signature); err != nil {
		emitAudit(ctx, h.audit, audit.ActionIssuerRegister, "", form.Address, err)
		h.renderRegister(ctx, http.StatusBadRequest, form, gin.H{"Error": invalidSigMessage})
		return
	}

	req := backend.RegisterIssuerRequest{
		Address:   form.Address,
		Name:      form.Name,
		Signature: form.Signature,
	}

	rctx := ctx.Request.Context()
	if h.entropy != nil && h.entropy.Enabled() {
		value, err := h.entropy.Entropy(rctx)
		if err != nil {
			h.log.ErrorContext(rctx, "hsm_entropy_failed", "err", err)
			emitAudit(ctx, h.audit, audit.ActionIssuerRegister, "", form.Address, err)
			h.renderRegister(ctx, http.StatusOK, form, gin.H{"Error": "Registration failed: entropy source unavailable"})
			return
		}
		req.Entropy = value
	}

	err := h.backend.RegisterIssuer(rctx, req)
	emitAudit(ctx, h.audit, audit.ActionIssuerRegister, "", form.Address, err)

	if err != nil {
		h.log.WarnContext(rctx, "register_issuer_failed", "issuer", form.Address, "err", err)
		h.renderRegister(ctx, http.StatusOK, form, gin.H{"Error": "Registration failed: " + backend.Message(err, "Unknown error")})
		return
	}

	h.renderRegister(ctx, http.StatusOK, registerIssuerForm{}, gin.H{"Success": registeredMessage})
}

func (h *IssuerHandler) renderRegister(ctx *gin.Context, status int, form registerIssuerForm, data gin.H) {
	// never echo the signature back
	form.Signature = ""
	data["Form"] = form
	render(ctx, status, "issuer_register.html", "Register issuer", data)
}

func hashUpload(fh *multipart.FileHeader, entropy string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	return credential.Hash(f, entropy)
}

func uploadMessage(err error) string {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, credential.ErrEmptyDocument):
		return "The selected PDF is empty."
	case errors.Is(err, credential.ErrMissingEntropy):
		return "Issuer entropy is not available. Is the issuer registered?"
	case errors.As(err, &tooLarge):
		return "The selected PDF is too large."
	default:
		return "Could not read the uploaded PDF."
	}
}
