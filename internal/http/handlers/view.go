package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/domain/account"
	"github.com/gradtrust/portal/internal/http/middlewares"
)

const flashCookie = "flash"

// SessionView is what the layout needs to know about the signed-in user.
type SessionView struct {
	Username string
	Address  string
	Role     account.Role
}

type Flash struct {
	Kind    string
	Message string
}

func sessionView(ctx *gin.Context) *SessionView {
	claims, ok := middlewares.ClaimsFromContext(ctx)
	if !ok {
		return nil
	}
	return &SessionView{
		Username: claims.Username,
		Address:  claims.Address,
		Role:     claims.AccountRole(),
	}
}

// render fills the layout keys and writes the named page.
func render(ctx *gin.Context, status int, page, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Session"] = sessionView(ctx)
	data["Title"] = title
	if _, ok := data["Flash"]; !ok {
		data["Flash"] = takeFlash(ctx)
	}
	for _, k := range []string{"Error", "Success"} {
		if _, ok := data[k]; !ok {
			data[k] = ""
		}
	}

	ctx.Header("Cache-Control", "no-store")
	ctx.HTML(status, page, data)
}

// setFlash carries a one-shot banner across a redirect.
func setFlash(ctx *gin.Context, kind, message string) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + "|" + message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func takeFlash(ctx *gin.Context) *Flash {
	raw, err := ctx.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}

	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// ctx.Cookie already unescapes the value
	kind, msg, ok := strings.Cut(raw, "|")
	if !ok || msg == "" {
		return nil
	}
	return &Flash{Kind: kind, Message: msg}
}

func redirectWithFlash(ctx *gin.Context, location, kind, message string) {
	setFlash(ctx, kind, message)
	ctx.Redirect(http.StatusSeeOther, location)
}
