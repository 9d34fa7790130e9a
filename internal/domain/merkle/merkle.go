package merkle

import "strings"

// Socket.IO event names emitted by the backend.
const (
	EventRootUpdated    = "merkle_root_updated"
	EventPendingUpdates = "pending_updates"
)

type PendingUpdate struct {
	MerkleRoot string `json:"merkleRoot"`
	FirstAdmin string `json:"firstAdmin"`
}

type UpdateResult struct {
	MerkleRoot      string `json:"merkleRoot"`
	TransactionHash string `json:"transactionHash"`
}

// Pending is the backend's pending-updates view. LastUpdate is only set when
// nothing is pending.
type Pending struct {
	Pending    []PendingUpdate `json:"pending"`
	LastUpdate *UpdateResult   `json:"lastUpdate,omitempty"`
}

// SignRequest is one admin's approval of a candidate root.
type SignRequest struct {
	AdminAddress string `json:"adminAddress" form:"adminAddress" binding:"required,wallet"`
	Signature    string `json:"signature" form:"signature" binding:"required"`
	MerkleRoot   string `json:"merkleRoot" form:"merkleRoot" binding:"required"`
}

// SignResponse covers both the first-signature and the completed update reply.
type SignResponse struct {
	Success              bool   `json:"success"`
	Message              string `json:"message,omitempty"`
	NeedsSecondSignature bool   `json:"needsSecondSignature,omitempty"`
	MerkleRoot           string `json:"merkleRoot,omitempty"`
	TransactionHash      string `json:"transactionHash,omitempty"`
	Error                string `json:"error,omitempty"`
}

// Completed reports whether the root was written on-chain.
func (r SignResponse) Completed() bool {
	return r.Success && !r.NeedsSecondSignature && r.TransactionHash != ""
}

// AwaitingSignatureFrom reports whether root is pending and address is not the
// admin who signed first.
func (p Pending) AwaitingSignatureFrom(root, address string) bool {
	for _, u := range p.Pending {
		if u.MerkleRoot == root {
			return !strings.EqualFold(u.FirstAdmin, address)
		}
	}
	return false
}

// Event is a message relayed from the backend's socket channel.
type Event struct {
	Name    string          `json:"name"`
	Updated *UpdateResult   `json:"updated,omitempty"`
	Pending []PendingUpdate `json:"pending,omitempty"`
}
