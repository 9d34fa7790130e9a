package observability

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gradtrust/portal/internal/backend"
)

func (p *Prom) ObserveBackend(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "ok"

	if err != nil {
		status = "error"
		p.BackendErrorsTotal.WithLabelValues(op, classifyBackendErr(err)).Inc()
	}
	p.BackendCallDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func classifyBackendErr(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return "http_" + strconv.Itoa(apiErr.Status)
	}

	if errors.Is(err, backend.ErrCircuitOpen) {
		return "circuit_open"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "unknown"
	}
}
