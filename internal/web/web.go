// Package web holds the portal's HTML templates and static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/gradtrust/portal/internal/domain/account"
	"github.com/gradtrust/portal/internal/domain/credential"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates parses every page and partial into one set. Pages are looked up
// by file name, e.g. "admin.html".
func Templates() (*template.Template, error) {
	return template.New("portal").Funcs(funcs()).ParseFS(templateFS, "templates/*.html")
}

// Static is served under /static.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// the directory is embedded above, so this cannot happen at runtime
		panic(err)
	}
	return sub
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"date": func(t credential.IssuedAt) string {
			if t == 0 {
				return "-"
			}
			return t.Time().Format("2006-01-02")
		},
		"datetime": func(t time.Time) string {
			return t.UTC().Format("2006-01-02 15:04:05 UTC")
		},
		"roleName": func(r account.Role) string {
			name := r.Name()
			return strings.ToUpper(name[:1]) + name[1:]
		},
		"list": func(items ...credential.Credential) []credential.Credential {
			return items
		},
		"roles": account.AllRoles,
		"short": func(s string) string {
			if len(s) <= 14 {
				return s
			}
			return s[:8] + "…" + s[len(s)-6:]
		},
	}
}
