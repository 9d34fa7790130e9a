package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/audit"
	"github.com/gradtrust/portal/internal/auth"
	"github.com/gradtrust/portal/internal/backend"
	"github.com/gradtrust/portal/internal/forms"
	"github.com/gradtrust/portal/internal/http/middlewares"
)

const (
	loginFailedMessage   = "There was a problem during your login."
	signUpSuccessMessage = "Sign up successful! You can now sign in."
)

type SessionBackend interface {
	Login(ctx context.Context, username, password string) (backend.LoginResult, error)
	CreateAccount(ctx context.Context, username, password, address string) error
}

type SessionHandler struct {
	backend       SessionBackend
	audit         AuditEmitter
	secureCookies bool
	log           *slog.Logger
}

func NewSessionHandler(b SessionBackend, a AuditEmitter, secureCookies bool, log *slog.Logger) *SessionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SessionHandler{backend: b, audit: orNoopAudit(a), secureCookies: secureCookies, log: log}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,max=255"`
	Password string `json:"password" binding:"required"`
}

type signInForm struct {
	Username string `form:"username" binding:"required,max=255"`
	Password string `form:"password" binding:"required"`
}

// APILogin proxies the JSON login. Backend failures are passed through
// untouched so browser scripts see the backend's own error body.
func (h *SessionHandler) APILogin(ctx *gin.Context) {
	var req loginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.backend.Login(ctx.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	emitAudit(ctx, h.audit, audit.ActionLogin, req.Username, req.Username, err)

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if len(apiErr.Body) == 0 {
			ctx.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
			return
		}
		ctx.Data(apiErr.Status, "application/json; charset=utf-8", apiErr.Body)
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "login_proxy_failed", "err", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": loginFailedMessage})
		return
	}

	h.issueCookies(ctx, res)

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	ctx.Data(status, "application/json; charset=utf-8", res.Body)
}

func (h *SessionHandler) SignInPage(ctx *gin.Context) {
	if claims, ok := middlewares.ClaimsFromContext(ctx); ok {
		ctx.Redirect(http.StatusFound, claims.AccountRole().HomePath())
		return
	}
	render(ctx, http.StatusOK, "sign_in.html", "Sign In", gin.H{"Username": ""})
}

func (h *SessionHandler) SignIn(ctx *gin.Context) {
	var form signInForm
	if err := BindForm(ctx, &form); err != nil {
		render(ctx, http.StatusBadRequest, "sign_in.html", "Sign In", gin.H{
			"Username": form.Username,
			"Error":    "Please enter your email and password.",
		})
		return
	}

	username := strings.TrimSpace(form.Username)
	res, err := h.backend.Login(ctx.Request.Context(), username, form.Password)
	emitAudit(ctx, h.audit, audit.ActionLogin, username, username, err)

	if err != nil {
		status := http.StatusBadGateway
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			status = http.StatusUnauthorized
			if apiErr.Status >= http.StatusBadRequest {
				status = apiErr.Status
			}
		} else {
			h.log.ErrorContext(ctx.Request.Context(), "sign_in_failed", "err", err)
		}

		render(ctx, status, "sign_in.html", "Sign In", gin.H{
			"Username": username,
			"Error":    backend.Message(err, loginFailedMessage),
		})
		return
	}

	h.issueCookies(ctx, res)
	ctx.Redirect(http.StatusSeeOther, res.Role.HomePath())
}

func (h *SessionHandler) SignUpPage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "sign_up.html", "Sign Up", gin.H{"Form": forms.SignUpRequest{}})
}

func (h *SessionHandler) SignUp(ctx *gin.Context) {
	var form forms.SignUpRequest
	if err := BindForm(ctx, &form); err != nil {
		render(ctx, http.StatusBadRequest, "sign_up.html", "Sign Up", gin.H{
			"Form":  form,
			"Error": "Please fill out all fields.",
		})
		return
	}

	clean, err := form.Normalize()
	if err != nil {
		render(ctx, http.StatusBadRequest, "sign_up.html", "Sign Up", gin.H{
			"Form":  clean,
			"Error": forms.UserMessage(err),
		})
		return
	}

	err = h.backend.CreateAccount(ctx.Request.Context(), clean.Username, clean.Password, clean.Address)
	emitAudit(ctx, h.audit, audit.ActionSignUp, clean.Username, clean.Address, err)

	if err != nil {
		if !isAPIError(err) {
			h.log.ErrorContext(ctx.Request.Context(), "sign_up_failed", "err", err)
		}
		render(ctx, http.StatusOK, "sign_up.html", "Sign Up", gin.H{
			"Form":  clean,
			"Error": "Sign up failed: " + backend.Message(err, "Unknown error"),
		})
		return
	}

	redirectWithFlash(ctx, middlewares.SignInPath, "success", signUpSuccessMessage)
}

func (h *SessionHandler) Logout(ctx *gin.Context) {
	http.SetCookie(ctx.Writer, h.cookie(auth.AccessCookie, "", -1))
	http.SetCookie(ctx.Writer, h.cookie(auth.AddressCookie, "", -1))
	ctx.Redirect(http.StatusFound, middlewares.SignInPath)
}

// issueCookies re-issues the backend's session cookies on the portal origin
// and adds the wallet address next to them.
func (h *SessionHandler) issueCookies(ctx *gin.Context, res backend.LoginResult) {
	for _, raw := range res.SetCookies {
		c, err := http.ParseSetCookie(raw)
		if err != nil {
			ctx.Writer.Header().Add("Set-Cookie", raw)
			continue
		}
		// the backend scopes cookies to its own host
		c.Domain = ""
		http.SetCookie(ctx.Writer, c)
	}

	if len(res.SetCookies) > 0 && res.Address != "" {
		http.SetCookie(ctx.Writer, h.cookie(auth.AddressCookie, res.Address, 0))
	}
}

func (h *SessionHandler) cookie(name, value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:   name,
		Value:  value,
		Path:   "/",
		MaxAge: maxAge,
		Secure: h.secureCookies,
	}
	if h.secureCookies {
		c.SameSite = http.SameSiteNoneMode
	} else {
		// browsers drop SameSite=None without Secure
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

func isAPIError(err error) bool {
	var apiErr *backend.APIError
	return errors.As(err, &apiErr)
}
