package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondJSONWithETag serves a credential list with a strong validator.
func RespondJSONWithETag(ctx *gin.Context, status int, payload interface{}) {
	respondWithValidator(ctx, status, payload, false)
}

// RespondJSONWithWeakETag serves the audit list. Its validator is weak and the
// response varies by session cookie.
func RespondJSONWithWeakETag(ctx *gin.Context, status int, payload interface{}) {
	ctx.Header("Vary", "Cookie")
	respondWithValidator(ctx, status, payload, true)
}

func respondWithValidator(ctx *gin.Context, status int, payload interface{}, weak bool) {
	etag, err := buildETag(payload, weak)
	if err != nil {
		ctx.JSON(status, payload)
		return
	}

	ctx.Header("ETag", etag)
	ctx.Header("Cache-Control", "private, no-cache")

	if ifNoneMatchMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(status, payload)
}

func buildETag(payload interface{}, weak bool) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)
	tag := `"` + hex.EncodeToString(sum[:16]) + `"`
	if weak {
		return "W/" + tag, nil
	}
	return tag, nil
}

// If-None-Match uses weak comparison, so W/ prefixes are ignored on both sides.
func ifNoneMatchMatches(headerValue, currentETag string) bool {
	header := strings.TrimSpace(headerValue)
	if header == "" || strings.TrimSpace(currentETag) == "" {
		return false
	}
	if header == "*" {
		return true
	}

	current := opaqueTag(currentETag)
	for _, part := range strings.Split(header, ",") {
		if opaqueTag(part) == current {
			return true
		}
	}
	return false
}

func opaqueTag(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "W/")
}
