package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gradtrust/portal/internal/domain/account"
	"github.com/gradtrust/portal/internal/http/handlers"
	"github.com/gradtrust/portal/internal/http/middlewares"
	"github.com/gradtrust/portal/internal/web"
)

const serviceName = "gradtrust-portal"

// Backend is everything the pages need from the GradTrust API;
// *backend.Client satisfies it.
type Backend interface {
	handlers.SessionBackend
	handlers.AdminBackend
	handlers.IssuerBackend
	handlers.HolderBackend
}

type AuditLog interface {
	handlers.AuditEmitter
	handlers.AuditReader
}

type Options struct {
	PublicURL          string
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
	RateLimitPerMinute int
	CookieSecure       bool
}

type Deps struct {
	Log         *slog.Logger
	Tokens      middlewares.TokenVerifier
	Backend     Backend
	Entropy     handlers.EntropySource
	Credentials handlers.CredentialLookup
	Audit       AuditLog
	Events      handlers.EventSource

	// optional
	Metrics     gin.HandlerFunc
	MetricsPage http.Handler
	SSEClients  handlers.ClientGauge
	Checks      []handlers.Check
}

func NewRouter(opts Options, deps Deps) (*gin.Engine, error) {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if deps.Metrics != nil {
		r.Use(deps.Metrics)
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(opts.CORSAllowedOrigins))
	r.Use(middlewares.SameOrigin(opts.PublicURL, opts.CORSAllowedOrigins))

	r.StaticFS("/static", http.FS(web.Static()))

	// health
	h := handlers.NewHealthHandler(deps.Checks...)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if deps.MetricsPage != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsPage))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	// wire up handlers
	sessions := middlewares.NewSessionMiddleware(deps.Tokens, log)
	sessionH := handlers.NewSessionHandler(deps.Backend, deps.Audit, opts.CookieSecure, log)
	adminH := handlers.NewAdminHandler(deps.Backend, deps.Audit, log)
	issuerH := handlers.NewIssuerHandler(deps.Backend, deps.Entropy, deps.Credentials, deps.Audit, log)
	holderH := handlers.NewHolderHandler(deps.Backend, deps.Credentials, deps.Audit, log)
	credsH := handlers.NewCredentialsHandler(deps.Credentials, opts.PublicURL, log)
	auditH := handlers.NewAuditHandler(deps.Audit, log)
	feedH := handlers.NewFeedHandler(deps.Events, deps.SSEClients)

	limiter := middlewares.NewRateLimiter(opts.RateLimitPerMinute, time.Minute)
	limit := limiter.RateLimiterMiddleware(middlewares.KeyByIP)

	// multipart overhead on top of the PDF itself
	upload := middlewares.MaxBodyBytes(opts.MaxUploadBytes + 1<<20)

	public := r.Group("/", sessions.OptionalSession())
	{
		public.GET("/", handlers.Index)
		public.GET("/about", handlers.About)
		public.GET("/unauthorized", handlers.Unauthorized)

		public.GET("/Sign_In", sessionH.SignInPage)
		public.POST("/Sign_In", limit, sessionH.SignIn)
		public.GET("/Sign_Up", sessionH.SignUpPage)
		public.POST("/Sign_Up", limit, sessionH.SignUp)
		public.GET("/logout", sessionH.Logout)

		public.GET("/verifier", credsH.Verifier)
		public.GET("/holder_NFC", credsH.HolderNFC)
		public.GET("/holder_NFC/qr", credsH.QR)
	}

	api := r.Group("/api")
	{
		api.POST("/login", limit, middlewares.RequireJSON(), sessionH.APILogin)
		api.GET("/credentials", credsH.List)
		api.GET("/admin/audit",
			sessions.RequireAPISession(),
			middlewares.RequireRole(account.RoleAdmin),
			auditH.List,
		)
	}

	pages := r.Group("/", sessions.RequirePageSession(middlewares.DefaultRoleRules()))
	{
		pages.GET("/admin", adminH.Dashboard)
		pages.POST("/admin", adminH.SubmitSignature)
		pages.POST("/admin/clear-last-update", adminH.ClearLastUpdate)
		pages.GET("/admin/events", feedH.Stream)
		pages.GET("/admin/create-issuer", adminH.CreateIssuerPage)
		pages.POST("/admin/create-issuer", adminH.CreateIssuer)
		pages.GET("/admin/manage-users", adminH.ManageUsers)
		pages.POST("/admin/manage-users/role", adminH.UpdateRole)
		pages.POST("/admin/manage-users/delete", adminH.DeleteUser)
		pages.GET("/admin/audit", auditH.Page)

		pages.GET("/issuer", issuerH.IssuePage)
		pages.POST("/issuer", upload, issuerH.Issue)
		pages.GET("/issuer/register", issuerH.RegisterPage)
		pages.POST("/issuer/register", issuerH.Register)

		pages.GET("/holder", holderH.Credentials)
		pages.GET("/holder/verify", holderH.VerifyPage)
		pages.POST("/holder/verify", upload, holderH.Verify)
	}

	r.NoRoute(func(ctx *gin.Context) {
		ctx.String(http.StatusNotFound, "404 page not found")
	})

	return r, nil
}
