package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gradtrust/portal/internal/audit"
	"github.com/gradtrust/portal/internal/backend"
	"github.com/gradtrust/portal/internal/domain/credential"
	"github.com/gradtrust/portal/internal/ethsig"
	"github.com/gradtrust/portal/internal/http/handlers"
)

var diplomaPDF = []byte("%PDF-1.7\n1 0 obj <<>> endobj\ntrailer <<>>\n%%EOF")

type fakeEntropy struct {
	enabled bool
	value   string
	err     error
}

func (f fakeEntropy) Enabled() bool { return f.enabled }

func (f fakeEntropy) Entropy(context.Context) (string, error) { return f.value, f.err }

func issueFields(holder, issuer string) map[string]string {
	return map[string]string{
		"holderAddress": holder,
		"issuerAddress": issuer,
		"issuerName":    "Uni of Testing",
		"metaData":      "BSc Computer Science",
	}
}

func TestIssue_HashesUploadAndInvalidatesHolder(t *testing.T) {
	holder := newWallet(t)
	issuer := newWallet(t)

	want, err := credential.Hash(bytes.NewReader(diplomaPDF), "issuer-entropy")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	var gotHash string
	var gotReq credential.IssueRequest
	fb := &fakeBackend{
		entropyFn: func(_ context.Context, addr string) (string, error) {
			if addr != issuer.address {
				t.Fatalf("entropy asked for %q", addr)
			}
			return "issuer-entropy", nil
		},
		issueFn: func(_ context.Context, hash string, req credential.IssueRequest) (credential.IssueResult, error) {
			gotHash, gotReq = hash, req
			return credential.IssueResult{Success: true, CredentialHash: hash, TransactionHash: "0xissuetx"}, nil
		},
	}
	creds := &fakeCredentials{}
	rec := &recordingAudit{}
	h := handlers.NewIssuerHandler(fb, nil, creds, rec, nil)

	r := newEngine(t, nil)
	r.POST("/issuer", h.Issue)

	w := serve(r, multipartRequest(t, "/issuer", issueFields(holder.address, issuer.address), diplomaPDF))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotHash != want {
		t.Fatalf("hash = %q, want %q", gotHash, want)
	}
	if gotReq.HolderAddress != holder.address || gotReq.Metadata != "BSc Computer Science" {
		t.Fatalf("unexpected request %+v", gotReq)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Credential Issued Successfully!") || !strings.Contains(body, "0xissuetx") {
		t.Fatalf("expected success page")
	}
	if len(creds.invalidated) != 1 || creds.invalidated[0] != holder.address {
		t.Fatalf("expected holder cache invalidation, got %v", creds.invalidated)
	}
	if e := rec.last(t); e.Action != audit.ActionCredentialIssue || e.Target != want {
		t.Fatalf("unexpected audit %+v", e)
	}
}

func TestIssue_ValidationErrors(t *testing.T) {
	holder := newWallet(t)
	issuer := newWallet(t)

	tests := []struct {
		name   string
		fields map[string]string
		pdf    []byte
		want   string
	}{
		{"missing file", issueFields(holder.address, issuer.address), nil, "Please fill out all fields and select a PDF file"},
		{"missing field", map[string]string{"holderAddress": holder.address}, diplomaPDF, "Please fill out all fields and select a PDF file"},
		{"bad holder address", issueFields("0x1234", issuer.address), diplomaPDF, "Please enter a valid Ethereum address."},
		{"empty pdf", issueFields(holder.address, issuer.address), []byte{}, "The selected PDF is empty."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{
				issueFn: func(context.Context, string, credential.IssueRequest) (credential.IssueResult, error) {
					t.Fatalf("backend must not be called")
					return credential.IssueResult{}, nil
				},
			}
			h := handlers.NewIssuerHandler(fb, nil, &fakeCredentials{}, nil, nil)

			r := newEngine(t, nil)
			r.POST("/issuer", h.Issue)

			w := serve(r, multipartRequest(t, "/issuer", tt.fields, tt.pdf))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Fatalf("expected %q in page", tt.want)
			}
		})
	}
}

func TestIssue_BackendRejects(t *testing.T) {
	holder := newWallet(t)
	issuer := newWallet(t)

	fb := &fakeBackend{
		issueFn: func(context.Context, string, credential.IssueRequest) (credential.IssueResult, error) {
			return credential.IssueResult{}, &backend.APIError{Status: http.StatusBadRequest, Message: "Credential already exists"}
		},
	}
	creds := &fakeCredentials{}
	h := handlers.NewIssuerHandler(fb, nil, creds, nil, nil)

	r := newEngine(t, nil)
	r.POST("/issuer", h.Issue)

	w := serve(r, multipartRequest(t, "/issuer", issueFields(holder.address, issuer.address), diplomaPDF))

	if !strings.Contains(w.Body.String(), "Credential already exists") {
		t.Fatalf("expected backend message")
	}
	if len(creds.invalidated) != 0 {
		t.Fatalf("cache must not be touched on failure")
	}
}

func TestRegisterIssuer(t *testing.T) {
	issuer := newWallet(t)
	const name = "Uni of Testing"

	t.Run("valid signature with hsm entropy", func(t *testing.T) {
		var got backend.RegisterIssuerRequest
		fb := &fakeBackend{
			registerIssuerFn: func(_ context.Context, req backend.RegisterIssuerRequest) error {
				got = req
				return nil
			},
		}
		h := handlers.NewIssuerHandler(fb, fakeEntropy{enabled: true, value: "hsm-entropy"}, nil, nil, nil)

		r := newEngine(t, nil)
		r.POST("/issuer/register", h.Register)

		sig := issuer.sign(ethsig.IssuerRegistrationMessage(issuer.address, name))
		w := serve(r, formRequest("/issuer/register", url.Values{"address": {issuer.address}, "name": {name}, "signature": {sig}}))

		if !strings.Contains(w.Body.String(), "Registration successful!") {
			t.Fatalf("expected success, got %s", w.Body.String())
		}
		if got.Address != issuer.address || got.Name != name || got.Signature != sig || got.Entropy != "hsm-entropy" {
			t.Fatalf("unexpected register request %+v", got)
		}
	})

	t.Run("signature over another name", func(t *testing.T) {
		fb := &fakeBackend{
			registerIssuerFn: func(context.Context, backend.RegisterIssuerRequest) error {
				t.Fatalf("backend must not be called")
				return nil
			},
		}
		h := handlers.NewIssuerHandler(fb, nil, nil, nil, nil)

		r := newEngine(t, nil)
		r.POST("/issuer/register", h.Register)

		sig := issuer.sign(ethsig.IssuerRegistrationMessage(issuer.address, "Another Uni"))
		w := serve(r, formRequest("/issuer/register", url.Values{"address": {issuer.address}, "name": {name}, "signature": {sig}}))

		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Invalid signature") {
			t.Fatalf("expected invalid signature, got %d", w.Code)
		}
		if strings.Contains(w.Body.String(), sig) {
			t.Fatalf("signature must not be echoed back")
		}
	})

	t.Run("hsm unavailable", func(t *testing.T) {
		h := handlers.NewIssuerHandler(&fakeBackend{}, fakeEntropy{enabled: true, err: errors.New("hsm down")}, nil, nil, nil)

		r := newEngine(t, nil)
		r.POST("/issuer/register", h.Register)

		sig := issuer.sign(ethsig.IssuerRegistrationMessage(issuer.address, name))
		w := serve(r, formRequest("/issuer/register", url.Values{"address": {issuer.address}, "name": {name}, "signature": {sig}}))

		if !strings.Contains(w.Body.String(), "Registration failed: entropy source unavailable") {
			t.Fatalf("expected hsm failure message")
		}
	})

	t.Run("backend failure", func(t *testing.T) {
		fb := &fakeBackend{
			registerIssuerFn: func(context.Context, backend.RegisterIssuerRequest) error {
				return &backend.APIError{Status: http.StatusConflict, Message: "Issuer already registered"}
			},
		}
		h := handlers.NewIssuerHandler(fb, nil, nil, nil, nil)

		r := newEngine(t, nil)
		r.POST("/issuer/register", h.Register)

		sig := issuer.sign(ethsig.IssuerRegistrationMessage(issuer.address, name))
		w := serve(r, formRequest("/issuer/register", url.Values{"address": {issuer.address}, "name": {name}, "signature": {sig}}))

		if !strings.Contains(w.Body.String(), "Registration failed: Issuer already registered") {
			t.Fatalf("expected backend message")
		}
	})
}
