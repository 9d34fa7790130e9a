package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSameOrigin(t *testing.T) {
	r := gin.New()
	r.Use(SameOrigin("https://portal.example", []string{"https://admin.example/"}))
	r.POST("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		method string
		origin string
		want   int
	}{
		{"get passes", http.MethodGet, "https://evil.example", http.StatusOK},
		{"no origin", http.MethodPost, "", http.StatusOK},
		{"public url", http.MethodPost, "https://portal.example", http.StatusOK},
		{"allow list", http.MethodPost, "https://admin.example", http.StatusOK},
		{"request host", http.MethodPost, "http://example.com", http.StatusOK},
		{"cross site", http.MethodPost, "https://evil.example", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/admin", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
