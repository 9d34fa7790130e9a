package middlewares

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/auth"
	"github.com/gradtrust/portal/internal/domain/account"
	"github.com/gradtrust/portal/internal/observability"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

const (
	SignInPath       = "/Sign_In"
	UnauthorizedPath = "/unauthorized"
)

// RoleRule restricts a path subtree to one role.
type RoleRule struct {
	Prefix string
	Role   account.Role
}

func (r RoleRule) matches(path string) bool {
	return path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/")
}

// DefaultRoleRules gates the admin and issuer subtrees.
func DefaultRoleRules() []RoleRule {
	return []RoleRule{
		{Prefix: "/admin", Role: account.RoleAdmin},
		{Prefix: "/issuer", Role: account.RoleIssuer},
	}
}

type SessionMiddleware struct {
	jwt TokenVerifier
	log *slog.Logger
}

func NewSessionMiddleware(jwt TokenVerifier, log *slog.Logger) *SessionMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &SessionMiddleware{jwt: jwt, log: log}
}

// RequirePageSession redirects browsers without a valid access_token cookie
// to the sign-in page, and signed-in users outside a rule's role to
// /unauthorized.
func (m *SessionMiddleware) RequirePageSession(rules []RoleRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.verifyCookie(c)
		if !ok {
			c.Redirect(http.StatusFound, SignInPath)
			c.Abort()
			return
		}

		path := c.Request.URL.Path
		role := claims.AccountRole()
		for _, rule := range rules {
			if rule.matches(path) && role != rule.Role {
				m.log.InfoContext(c.Request.Context(), "role_gate_denied",
					"path", path,
					"role", claims.Role,
					"required", rule.Role,
				)
				c.Redirect(http.StatusFound, UnauthorizedPath)
				c.Abort()
				return
			}
		}

		setClaims(c, claims)
		c.Next()
	}
}

// RequireAPISession is the JSON flavour: no redirects, just a 401.
func (m *SessionMiddleware) RequireAPISession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.verifyCookie(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid session",
				},
			})
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalSession exposes the session on public pages when one exists.
func (m *SessionMiddleware) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(auth.AccessCookie)
		if err == nil && raw != "" {
			if claims, err := m.jwt.VerifyAccessToken(raw); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

func (m *SessionMiddleware) verifyCookie(c *gin.Context) (*auth.Claims, bool) {
	raw, err := c.Cookie(auth.AccessCookie)
	if err != nil || strings.TrimSpace(raw) == "" {
		return nil, false
	}

	claims, err := m.jwt.VerifyAccessToken(raw)
	if err != nil {
		m.log.WarnContext(c.Request.Context(), "session_token_invalid",
			"path", c.Request.URL.Path,
			"err", err,
		)
		return nil, false
	}
	return claims, true
}

// Optional helpers so handlers don't need to know the magic keys.

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(CtxClaims, claims)
	if claims.Address != "" {
		c.Request = c.Request.WithContext(observability.WithWallet(c.Request.Context(), claims.Address))
	}
}

func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(CtxClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

func RoleFromContext(c *gin.Context) (account.Role, bool) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		return "", false
	}
	role := claims.AccountRole()
	return role, role != ""
}
