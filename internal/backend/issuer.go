package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gradtrust/portal/internal/domain/credential"
)

type RegisterIssuerRequest struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Entropy   string `json:"entropy,omitempty"`
}

func (c *Client) RegisterIssuer(ctx context.Context, req RegisterIssuerRequest) error {
	return c.do(ctx, call{
		op:       "register_issuer",
		method:   http.MethodPost,
		path:     "/api/issuer/register",
		jsonBody: req,
	})
}

// IssueCredential records an already hashed credential. The document itself
// never leaves the portal.
func (c *Client) IssueCredential(ctx context.Context, hash string, req credential.IssueRequest) (credential.IssueResult, error) {
	form := (&multipartForm{}).
		add("credentialHash", hash).
		add("holderAddress", req.HolderAddress).
		add("issuerAddress", req.IssuerAddress).
		add("issuerName", req.IssuerName).
		add("metaData", req.Metadata)

	var out credential.IssueResult

	err := c.do(ctx, call{
		op:     "issue_credential",
		method: http.MethodPost,
		path:   "/api/issuer/issue-credential",
		form:   form,
		out:    &out,
	})
	if err == nil && out.CredentialHash == "" {
		out.CredentialHash = hash
	}
	return out, err
}

func (c *Client) PullCredentials(ctx context.Context, holderAddress string) ([]credential.Credential, error) {
	var data struct {
		Credentials []credential.Credential `json:"credentials"`
	}

	if err := c.do(ctx, call{
		op:     "pull_credentials",
		method: http.MethodGet,
		path:   "/api/pull-credentials",
		query:  url.Values{"address": {holderAddress}},
		out:    &data,
	}); err != nil {
		return nil, err
	}
	return data.Credentials, nil
}
