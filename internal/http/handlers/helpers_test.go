package handlers_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/audit"
	"github.com/gradtrust/portal/internal/auth"
	"github.com/gradtrust/portal/internal/backend"
	"github.com/gradtrust/portal/internal/domain/account"
	"github.com/gradtrust/portal/internal/domain/credential"
	"github.com/gradtrust/portal/internal/domain/merkle"
	"github.com/gradtrust/portal/internal/forms"
	"github.com/gradtrust/portal/internal/http/middlewares"
	"github.com/gradtrust/portal/internal/web"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
	forms.RegisterValidators()
}

func newEngine(t *testing.T, claims *auth.Claims) *gin.Engine {
	t.Helper()

	tmpl, err := web.Templates()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	if claims != nil {
		r.Use(func(c *gin.Context) {
			c.Set(middlewares.CtxClaims, claims)
			c.Next()
		})
	}
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func multipartRequest(t *testing.T, path string, fields map[string]string, pdf []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if pdf != nil {
		fw, err := mw.CreateFormFile("pdf", "diploma.pdf")
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		if _, err := fw.Write(pdf); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// wallet signs like a browser wallet's personal_sign.
type wallet struct {
	address string
	sign    func(msg string) string
}

func newWallet(t *testing.T) wallet {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	return wallet{
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		sign: func(msg string) string {
			raw, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			raw[crypto.RecoveryIDOffset] += 27
			return hexutil.Encode(raw)
		},
	}
}

// Fake backend implementing every handler-facing backend interface.

type fakeBackend struct {
	loginFn          func(ctx context.Context, username, password string) (backend.LoginResult, error)
	createAccountFn  func(ctx context.Context, username, password, address string) error
	newRootFn        func(ctx context.Context) (string, error)
	pendingFn        func(ctx context.Context) (merkle.Pending, error)
	lastUpdateFn     func(ctx context.Context) (*merkle.UpdateResult, error)
	submitFn         func(ctx context.Context, req merkle.SignRequest) (merkle.SignResponse, error)
	clearFn          func(ctx context.Context) (string, error)
	createIssuerFn   func(ctx context.Context, req backend.CreateIssuerRequest) (string, error)
	listAccountsFn   func(ctx context.Context) ([]account.Account, error)
	updateRoleFn     func(ctx context.Context, address string, role account.Role) (string, error)
	deleteAccountFn  func(ctx context.Context, username string) (string, error)
	entropyFn        func(ctx context.Context, issuer string) (string, error)
	issueFn          func(ctx context.Context, hash string, req credential.IssueRequest) (credential.IssueResult, error)
	registerIssuerFn func(ctx context.Context, req backend.RegisterIssuerRequest) error
	holderAddressFn  func(ctx context.Context, token string) (string, error)
}

func (f *fakeBackend) Login(ctx context.Context, username, password string) (backend.LoginResult, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, username, password)
	}
	return backend.LoginResult{Status: http.StatusOK, Body: []byte(`{"success":true}`)}, nil
}

func (f *fakeBackend) CreateAccount(ctx context.Context, username, password, address string) error {
	if f.createAccountFn != nil {
		return f.createAccountFn(ctx, username, password, address)
	}
	return nil
}

func (f *fakeBackend) NewRoot(ctx context.Context) (string, error) {
	if f.newRootFn != nil {
		return f.newRootFn(ctx)
	}
	return "", nil
}

func (f *fakeBackend) PendingUpdates(ctx context.Context) (merkle.Pending, error) {
	if f.pendingFn != nil {
		return f.pendingFn(ctx)
	}
	return merkle.Pending{}, nil
}

func (f *fakeBackend) LastUpdate(ctx context.Context) (*merkle.UpdateResult, error) {
	if f.lastUpdateFn != nil {
		return f.lastUpdateFn(ctx)
	}
	return nil, nil
}

func (f *fakeBackend) SubmitRootSignature(ctx context.Context, req merkle.SignRequest) (merkle.SignResponse, error) {
	if f.submitFn != nil {
		return f.submitFn(ctx, req)
	}
	return merkle.SignResponse{Success: true}, nil
}

func (f *fakeBackend) ClearLastUpdate(ctx context.Context) (string, error) {
	if f.clearFn != nil {
		return f.clearFn(ctx)
	}
	return "", nil
}

func (f *fakeBackend) CreateIssuer(ctx context.Context, req backend.CreateIssuerRequest) (string, error) {
	if f.createIssuerFn != nil {
		return f.createIssuerFn(ctx, req)
	}
	return req.Name, nil
}

func (f *fakeBackend) ListAccounts(ctx context.Context) ([]account.Account, error) {
	if f.listAccountsFn != nil {
		return f.listAccountsFn(ctx)
	}
	return nil, nil
}

func (f *fakeBackend) UpdateAccountRole(ctx context.Context, address string, role account.Role) (string, error) {
	if f.updateRoleFn != nil {
		return f.updateRoleFn(ctx, address, role)
	}
	return "", nil
}

func (f *fakeBackend) DeleteAccount(ctx context.Context, username string) (string, error) {
	if f.deleteAccountFn != nil {
		return f.deleteAccountFn(ctx, username)
	}
	return "", nil
}

func (f *fakeBackend) Entropy(ctx context.Context, issuer string) (string, error) {
	if f.entropyFn != nil {
		return f.entropyFn(ctx, issuer)
	}
	return "entropy", nil
}

func (f *fakeBackend) IssueCredential(ctx context.Context, hash string, req credential.IssueRequest) (credential.IssueResult, error) {
	if f.issueFn != nil {
		return f.issueFn(ctx, hash, req)
	}
	return credential.IssueResult{Success: true, CredentialHash: hash}, nil
}

func (f *fakeBackend) RegisterIssuer(ctx context.Context, req backend.RegisterIssuerRequest) error {
	if f.registerIssuerFn != nil {
		return f.registerIssuerFn(ctx, req)
	}
	return nil
}

func (f *fakeBackend) HolderAddress(ctx context.Context, token string) (string, error) {
	if f.holderAddressFn != nil {
		return f.holderAddressFn(ctx, token)
	}
	return "", backend.ErrNoAddress
}

// fakeCredentials stands in for the cached credential lookup.
type fakeCredentials struct {
	mu          sync.Mutex
	byAddress   map[string][]credential.Credential
	err         error
	invalidated []string
}

func (f *fakeCredentials) Lookup(_ context.Context, address string) ([]credential.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.byAddress[strings.ToLower(address)], nil
}

func (f *fakeCredentials) Invalidate(_ context.Context, address string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, address)
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Emit(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) Recent(_ context.Context, limit int) ([]audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.events) {
		limit = len(r.events)
	}
	return append([]audit.Event(nil), r.events[:limit]...), nil
}

func (r *recordingAudit) last(t *testing.T) audit.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatalf("expected an audit event")
	}
	return r.events[len(r.events)-1]
}

func adminClaims(address string) *auth.Claims {
	return &auth.Claims{Username: "root@uni.example", Address: address, Role: string(account.RoleAdmin)}
}
