package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gradtrust/portal/internal/auth"
	"github.com/gradtrust/portal/internal/domain/account"
)

// LoginResult is a successful backend login. SetCookies holds the raw
// Set-Cookie values so the portal can re-issue them on its own origin.
type LoginResult struct {
	Status     int
	Body       []byte
	SetCookies []string

	Role     account.Role
	Address  string
	Username string
}

func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var res LoginResult

	var data struct {
		Role     string `json:"role"`
		Address  string `json:"address"`
		Username string `json:"username"`
	}

	err := c.do(ctx, call{
		op:       "login",
		method:   http.MethodPost,
		path:     "/api/login",
		jsonBody: map[string]string{"username": username, "password": password},
		out:      &data,
		keep: func(resp *http.Response, body []byte) {
			res.Status = resp.StatusCode
			res.Body = body
			res.SetCookies = resp.Header.Values("Set-Cookie")
		},
	})
	if err != nil {
		return res, err
	}

	// unknown codes fall through to the holder landing page
	res.Role, _ = account.ParseRole(data.Role)
	res.Address = data.Address
	res.Username = data.Username
	return res, nil
}

func (c *Client) CreateAccount(ctx context.Context, username, password, address string) error {
	form := (&multipartForm{}).
		add("username", username).
		add("password", password).
		add("address", address)

	return c.do(ctx, call{
		op:     "create_account",
		method: http.MethodPost,
		path:   "/api/create-account",
		form:   form,
	})
}

// HolderAddress asks the backend which wallet belongs to the session token.
func (c *Client) HolderAddress(ctx context.Context, accessToken string) (string, error) {
	h := http.Header{}
	h.Set("Cookie", (&http.Cookie{Name: auth.AccessCookie, Value: accessToken}).String())

	var data struct {
		Address string `json:"address"`
	}

	if err := c.do(ctx, call{
		op:     "holder_address",
		method: http.MethodGet,
		path:   "/api/holder-address",
		header: h,
		out:    &data,
	}); err != nil {
		return "", err
	}

	if strings.TrimSpace(data.Address) == "" {
		return "", ErrNoAddress
	}
	return data.Address, nil
}

func (c *Client) Entropy(ctx context.Context, issuerAddress string) (string, error) {
	var data struct {
		Entropy string `json:"entropy"`
	}

	if err := c.do(ctx, call{
		op:     "get_entropy",
		method: http.MethodGet,
		path:   "/api/get-entropy",
		query:  url.Values{"address": {issuerAddress}},
		out:    &data,
	}); err != nil {
		return "", err
	}
	return data.Entropy, nil
}
