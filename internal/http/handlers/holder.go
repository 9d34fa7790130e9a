package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/audit"
	"github.com/gradtrust/portal/internal/auth"
	"github.com/gradtrust/portal/internal/backend"
	"github.com/gradtrust/portal/internal/domain/credential"
	"github.com/gradtrust/portal/internal/http/middlewares"
)

const (
	noAddressMessage   = "No wallet address found in user info."
	sessionExpiredMsg  = "Not logged in or session expired."
	verifiedMessage    = "Document successfully verified on the blockchain!"
	notVerifiedMessage = "Document not found on the blockchain or issuer mismatch."
)

type HolderBackend interface {
	HolderAddress(ctx context.Context, accessToken string) (string, error)
	Entropy(ctx context.Context, issuerAddress string) (string, error)
}

type HolderHandler struct {
	backend     HolderBackend
	credentials CredentialLookup
	audit       AuditEmitter
	log         *slog.Logger
	now         func() time.Time
}

func NewHolderHandler(b HolderBackend, creds CredentialLookup, a AuditEmitter, log *slog.Logger) *HolderHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HolderHandler{backend: b, credentials: creds, audit: orNoopAudit(a), log: log, now: time.Now}
}

// VerifyResult is shown after a document matched one of the holder's
// credentials.
type VerifyResult struct {
	Issuer       string
	VerifiedAt   time.Time
	DocumentHash string
	Credential   credential.Credential
}

// resolveAddress prefers the token claim, then the address cookie, then asks
// the backend. The returned string is a banner message when err is set.
func (h *HolderHandler) resolveAddress(ctx *gin.Context) (string, string, error) {
	if claims, ok := middlewares.ClaimsFromContext(ctx); ok && claims.Address != "" {
		return claims.Address, "", nil
	}

	if v, err := ctx.Cookie(auth.AddressCookie); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), "", nil
	}

	token, _ := ctx.Cookie(auth.AccessCookie)
	address, err := h.backend.HolderAddress(ctx.Request.Context(), token)
	switch {
	case err == nil:
		return address, "", nil
	case errors.Is(err, backend.ErrNoAddress):
		return "", noAddressMessage, err
	case backend.IsStatus(err, http.StatusUnauthorized):
		return "", sessionExpiredMsg, err
	default:
		h.log.WarnContext(ctx.Request.Context(), "holder_address_failed", "err", err)
		return "", backend.Message(err, "Failed to fetch user info."), err
	}
}

func (h *HolderHandler) Credentials(ctx *gin.Context) {
	data := gin.H{"Address": "", "Credentials": []credential.Credential(nil)}

	address, msg, err := h.resolveAddress(ctx)
	if err != nil {
		data["Error"] = msg
		render(ctx, http.StatusOK, "holder.html", "My credentials", data)
		return
	}
	data["Address"] = address

	creds, err := h.credentials.Lookup(ctx.Request.Context(), address)
	if err != nil {
		h.log.WarnContext(ctx.Request.Context(), "credential_lookup_failed", "address", address, "err", err)
		data["Error"] = backend.Message(err, "Failed to fetch credentials.")
		render(ctx, http.StatusOK, "holder.html", "My credentials", data)
		return
	}

	data["Credentials"] = creds
	if len(creds) == 0 {
		data["Flash"] = &Flash{Kind: "info", Message: noCredentialsMessage}
	}
	render(ctx, http.StatusOK, "holder.html", "My credentials", data)
}

func (h *HolderHandler) VerifyPage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "holder_verify.html", "Verify a document", gin.H{
		"IssuerAddress": "",
		"Result":        (*VerifyResult)(nil),
	})
}

type verifyForm struct {
	IssuerAddress string `form:"issuerAddress" binding:"required,wallet"`
}

// Verify recomputes the document hash with the issuer's entropy and looks for
// it among the holder's credentials from that issuer.
func (h *HolderHandler) Verify(ctx *gin.Context) {
	var form verifyForm
	bindErr := BindForm(ctx, &form)
	file, fileErr := ctx.FormFile(pdfField)

	data := gin.H{"IssuerAddress": strings.TrimSpace(form.IssuerAddress), "Result": (*VerifyResult)(nil)}
	fail := func(status int, msg string) {
		data["Error"] = msg
		render(ctx, status, "holder_verify.html", "Verify a document", data)
	}

	if err := errors.Join(bindErr, fileErr); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			fail(http.StatusRequestEntityTooLarge, uploadMessage(err))
		case fileErr == nil && hasOnlyRule(FieldErrors(bindErr, &form), "wallet"):
			fail(http.StatusBadRequest, invalidAddrMessage)
		default:
			fail(http.StatusBadRequest, "Please provide the issuer address and select a PDF file.")
		}
		return
	}

	issuer := strings.TrimSpace(form.IssuerAddress)
	rctx := ctx.Request.Context()

	address, msg, err := h.resolveAddress(ctx)
	if err != nil {
		fail(http.StatusOK, msg)
		return
	}

	entropy, err := h.backend.Entropy(rctx, issuer)
	if err != nil {
		h.log.WarnContext(rctx, "issuer_entropy_failed", "issuer", issuer, "err", err)
		fail(http.StatusOK, notVerifiedMessage)
		return
	}

	hash, err := hashUpload(file, entropy)
	if err != nil {
		fail(http.StatusBadRequest, uploadMessage(err))
		return
	}

	creds, err := h.credentials.Lookup(rctx, address)
	if err != nil {
		h.log.WarnContext(rctx, "credential_lookup_failed", "address", address, "err", err)
		fail(http.StatusOK, backend.Message(err, "Failed to fetch credentials."))
		return
	}

	found, ok := credential.FindIssued(creds, hash, issuer)
	var verifyErr error
	if !ok {
		verifyErr = errors.New("no matching credential")
	}
	emitAudit(ctx, h.audit, audit.ActionCredentialVerify, "", hash, verifyErr)

	if !ok {
		fail(http.StatusOK, notVerifiedMessage)
		return
	}

	data["Result"] = &VerifyResult{
		Issuer:       found.Issuer,
		VerifiedAt:   h.now().UTC(),
		DocumentHash: hash,
		Credential:   found,
	}
	data["Success"] = verifiedMessage
	render(ctx, http.StatusOK, "holder_verify.html", "Verify a document", data)
}
