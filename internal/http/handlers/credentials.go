package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/gradtrust/portal/internal/backend"
	"github.com/gradtrust/portal/internal/domain/credential"
	"github.com/gradtrust/portal/internal/ethsig"
)

const (
	noCredentialsMessage = "No credentials found for this address."
	qrSize               = 256
)

// CredentialLookup is the cached credential read path; cache.Credentials
// satisfies it.
type CredentialLookup interface {
	Lookup(ctx context.Context, holderAddress string) ([]credential.Credential, error)
	Invalidate(ctx context.Context, holderAddress string)
}

// CredentialsHandler serves the public lookups: verifier, NFC page, QR and
// the JSON API.
type CredentialsHandler struct {
	credentials CredentialLookup
	publicURL   string
	log         *slog.Logger
}

func NewCredentialsHandler(creds CredentialLookup, publicURL string, log *slog.Logger) *CredentialsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CredentialsHandler{credentials: creds, publicURL: strings.TrimRight(publicURL, "/"), log: log}
}

func (h *CredentialsHandler) Verifier(ctx *gin.Context) {
	h.lookupPage(ctx, "verifier.html", "Verify credentials")
}

func (h *CredentialsHandler) HolderNFC(ctx *gin.Context) {
	h.lookupPage(ctx, "holder_nfc.html", "Shared credentials")
}

func (h *CredentialsHandler) lookupPage(ctx *gin.Context, page, title string) {
	address := strings.TrimSpace(ctx.Query("address"))
	data := gin.H{"Address": address, "Credentials": []credential.Credential(nil)}

	if address == "" {
		data["Address"] = ""
		render(ctx, http.StatusOK, page, title, data)
		return
	}

	if !ethsig.IsAddress(address) {
		data["Address"] = ""
		data["Error"] = invalidAddrMessage
		render(ctx, http.StatusBadRequest, page, title, data)
		return
	}

	creds, err := h.credentials.Lookup(ctx.Request.Context(), address)
	if err != nil {
		h.log.WarnContext(ctx.Request.Context(), "credential_lookup_failed", "address", address, "err", err)
		data["Error"] = backend.Message(err, "Failed to fetch credentials.")
		render(ctx, http.StatusOK, page, title, data)
		return
	}

	data["Credentials"] = creds
	if len(creds) == 0 {
		data["Flash"] = &Flash{Kind: "info", Message: noCredentialsMessage}
	}
	render(ctx, http.StatusOK, page, title, data)
}

// QR renders a PNG pointing at the holder's NFC page.
func (h *CredentialsHandler) QR(ctx *gin.Context) {
	address := strings.TrimSpace(ctx.Query("address"))
	if !ethsig.IsAddress(address) {
		RespondBadRequest(ctx, invalidAddrMessage, nil)
		return
	}

	target := h.publicURL + "/holder_NFC?address=" + url.QueryEscape(address)
	png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "qr_encode_failed", "err", err)
		RespondInternal(ctx, "Could not render QR code")
		return
	}

	ctx.Header("Cache-Control", "public, max-age=3600")
	ctx.Data(http.StatusOK, "image/png", png)
}

type credentialsResponse struct {
	Address     string                  `json:"address"`
	Credentials []credential.Credential `json:"credentials"`
}

func (h *CredentialsHandler) List(ctx *gin.Context) {
	address := strings.TrimSpace(ctx.Query("address"))
	if !ethsig.IsAddress(address) {
		RespondBadRequest(ctx, invalidAddrMessage, gin.H{"field": "address"})
		return
	}

	creds, err := h.credentials.Lookup(ctx.Request.Context(), address)
	if err != nil {
		RespondBackendError(ctx, err)
		return
	}
	if creds == nil {
		creds = []credential.Credential{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, credentialsResponse{Address: address, Credentials: creds})
}
