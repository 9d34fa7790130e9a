package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Index(ctx *gin.Context) {
	render(ctx, http.StatusOK, "index.html", "", nil)
}

func About(ctx *gin.Context) {
	render(ctx, http.StatusOK, "about.html", "About", nil)
}

func Unauthorized(ctx *gin.Context) {
	render(ctx, http.StatusForbidden, "unauthorized.html", "Unauthorized", nil)
}
