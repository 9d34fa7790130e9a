package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gradtrust/portal/internal/audit"
	"github.com/gradtrust/portal/internal/http/handlers"
)

type failingReader struct{}

func (failingReader) Recent(context.Context, int) ([]audit.Event, error) {
	return nil, errors.New("db down")
}

func seededAudit() *recordingAudit {
	rec := &recordingAudit{}
	rec.Emit(context.Background(), audit.Event{
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Actor:     "root@uni.example",
		Action:    audit.ActionRoleUpdate,
		Target:    "0xAAA1=V",
		Outcome:   audit.OutcomeSuccess,
		Device:    "Firefox on Linux",
	})
	rec.Emit(context.Background(), audit.Event{
		Timestamp: time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC),
		Actor:     "root@uni.example",
		Action:    audit.ActionAccountDelete,
		Target:    "bob@college.example",
		Outcome:   audit.OutcomeFailure,
	})
	return rec
}

func TestAuditPage(t *testing.T) {
	h := handlers.NewAuditHandler(seededAudit(), nil)

	r := newEngine(t, adminClaims(""))
	r.GET("/admin/audit", h.Page)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/admin/audit", nil))

	body := w.Body.String()
	for _, want := range []string{"role_update", "account_delete", "Firefox on Linux"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q on the page", want)
		}
	}
}

func TestAuditPage_ReaderError(t *testing.T) {
	h := handlers.NewAuditHandler(failingReader{}, nil)

	r := newEngine(t, adminClaims(""))
	r.GET("/admin/audit", h.Page)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/admin/audit", nil))

	if !strings.Contains(w.Body.String(), "Could not load the audit log.") {
		t.Fatalf("expected error banner")
	}
}

func TestAuditAPI(t *testing.T) {
	h := handlers.NewAuditHandler(seededAudit(), nil)

	r := newEngine(t, adminClaims(""))
	r.GET("/api/admin/audit", h.List)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/admin/audit?limit=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Events []audit.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].Action != audit.ActionRoleUpdate {
		t.Fatalf("unexpected events %+v", body.Events)
	}
}

func TestAuditAPI_WeakETag(t *testing.T) {
	rec := seededAudit()
	h := handlers.NewAuditHandler(rec, nil)

	r := newEngine(t, adminClaims(""))
	r.GET("/api/admin/audit", h.List)

	first := serve(r, httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil))
	etag := first.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("expected weak validator, got %q", etag)
	}
	if first.Header().Get("Vary") != "Cookie" {
		t.Fatalf("expected Vary: Cookie, got %q", first.Header().Get("Vary"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	req.Header.Set("If-None-Match", etag)
	if w := serve(r, req); w.Code != http.StatusNotModified {
		t.Fatalf("expected 304 for unchanged log, got %d", w.Code)
	}

	// a strong form of the same tag still matches under weak comparison
	req = httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	req.Header.Set("If-None-Match", strings.TrimPrefix(etag, "W/"))
	if w := serve(r, req); w.Code != http.StatusNotModified {
		t.Fatalf("expected 304 for strong form, got %d", w.Code)
	}

	rec.Emit(context.Background(), audit.Event{Actor: "root@uni.example", Action: audit.ActionLogin})

	req = httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	req.Header.Set("If-None-Match", etag)
	if w := serve(r, req); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after a new event, got %d", w.Code)
	}
}

func TestAuditAPI_ReaderError(t *testing.T) {
	h := handlers.NewAuditHandler(failingReader{}, nil)

	r := newEngine(t, adminClaims(""))
	r.GET("/api/admin/audit", h.List)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}
