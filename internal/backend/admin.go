package backend

import (
	"context"
	"net/http"

	"github.com/gradtrust/portal/internal/domain/account"
	"github.com/gradtrust/portal/internal/domain/merkle"
)

func (c *Client) ListAccounts(ctx context.Context) ([]account.Account, error) {
	var out []account.Account

	if err := c.do(ctx, call{
		op:     "get_accounts",
		method: http.MethodGet,
		path:   "/api/admin/get-accounts",
		out:    &out,
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAccountRole returns the backend's confirmation message.
func (c *Client) UpdateAccountRole(ctx context.Context, address string, role account.Role) (string, error) {
	var data messageReply

	err := c.do(ctx, call{
		op:       "update_account",
		method:   http.MethodPut,
		path:     "/api/admin/update-account",
		jsonBody: map[string]string{"address": address, "role": string(role)},
		out:      &data,
	})
	return data.Message, err
}

func (c *Client) DeleteAccount(ctx context.Context, username string) (string, error) {
	var data messageReply

	err := c.do(ctx, call{
		op:       "delete_account",
		method:   http.MethodDelete,
		path:     "/api/admin/delete-account",
		jsonBody: map[string]string{"username": username},
		out:      &data,
	})
	return data.Message, err
}

type CreateIssuerRequest struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// CreateIssuer returns the issuer name as stored by the backend.
func (c *Client) CreateIssuer(ctx context.Context, req CreateIssuerRequest) (string, error) {
	var data struct {
		Name string `json:"name"`
	}

	if err := c.do(ctx, call{
		op:       "create_issuer",
		method:   http.MethodPost,
		path:     "/api/admin/create-issuer",
		jsonBody: req,
		out:      &data,
	}); err != nil {
		return "", err
	}

	if data.Name == "" {
		return req.Name, nil
	}
	return data.Name, nil
}

func (c *Client) NewRoot(ctx context.Context) (string, error) {
	var data struct {
		MerkleRoot string `json:"merkleRoot"`
	}

	if err := c.do(ctx, call{
		op:     "get_new_root",
		method: http.MethodGet,
		path:   "/api/admin/get-new-root",
		header: noCache(),
		out:    &data,
	}); err != nil {
		return "", err
	}
	return data.MerkleRoot, nil
}

// SubmitRootSignature sends one admin's approval. A backend rejection comes
// back as an *APIError, the decoded reply is returned alongside it.
func (c *Client) SubmitRootSignature(ctx context.Context, req merkle.SignRequest) (merkle.SignResponse, error) {
	var out merkle.SignResponse

	err := c.do(ctx, call{
		op:       "update_merkle_root",
		method:   http.MethodPost,
		path:     "/api/admin/multi-sig/update-merkle-root",
		jsonBody: req,
		header:   noCache(),
		out:      &out,
	})
	return out, err
}

func (c *Client) PendingUpdates(ctx context.Context) (merkle.Pending, error) {
	var out merkle.Pending

	err := c.do(ctx, call{
		op:     "pending_updates",
		method: http.MethodGet,
		path:   "/api/admin/multi-sig/pending-updates",
		header: noCache(),
		out:    &out,
	})
	return out, err
}

// LastUpdate returns nil when no root has been written yet.
func (c *Client) LastUpdate(ctx context.Context) (*merkle.UpdateResult, error) {
	var data struct {
		LastUpdate *merkle.UpdateResult `json:"lastUpdate"`
	}

	err := c.do(ctx, call{
		op:     "last_update",
		method: http.MethodGet,
		path:   "/api/admin/multi-sig/last-update",
		header: noCache(),
		out:    &data,
	})
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data.LastUpdate, nil
}

func (c *Client) ClearLastUpdate(ctx context.Context) (string, error) {
	var data messageReply

	err := c.do(ctx, call{
		op:     "clear_last_update",
		method: http.MethodPost,
		path:   "/api/admin/multi-sig/clear-last-update",
		out:    &data,
	})
	return data.Message, err
}

type messageReply struct {
	Message string `json:"message"`
}
