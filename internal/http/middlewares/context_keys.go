package middlewares

// Keys used with gin's c.Set/c.Get. Gin looks these up by string, so they
// stay untyped.
const (
	CtxRequestID = "request_id"
	CtxClaims    = "auth.claims"
)
