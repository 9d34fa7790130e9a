package credential

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyDocument  = errors.New("document is empty")
	ErrMissingEntropy = errors.New("issuer entropy is empty")
)

type Credential struct {
	Hash     string   `json:"credentialHash"`
	Issuer   string   `json:"issuer"`
	Holder   string   `json:"holder"`
	IssuedAt IssuedAt `json:"issuedAt"`
	Data     string   `json:"data"`
}

// IssuedAt is a block timestamp in unix seconds. The backend sends it as a
// number, but some paths stringify it.
type IssuedAt int64

func (t *IssuedAt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = 0
		return nil
	}

	raw := strings.Trim(string(b), `"`)
	if raw == "" {
		*t = 0
		return nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*t = IssuedAt(n)
	return nil
}

func (t IssuedAt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(t))
}

func (t IssuedAt) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// IssueRequest is what the issuer form collects before hashing.
type IssueRequest struct {
	HolderAddress string `form:"holderAddress" binding:"required,wallet"`
	IssuerAddress string `form:"issuerAddress" binding:"required,wallet"`
	IssuerName    string `form:"issuerName" binding:"required,max=255"`
	Metadata      string `form:"metaData" binding:"required,max=1000"`
}

// IssueResult mirrors the backend's issue-credential reply.
type IssueResult struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash,omitempty"`
	CredentialHash  string `json:"credentialHash,omitempty"`
	Error           string `json:"error,omitempty"`
}

// FindIssued returns the credential with the given hash issued by issuer.
func FindIssued(creds []Credential, hash, issuer string) (Credential, bool) {
	for _, c := range creds {
		if strings.EqualFold(c.Hash, hash) && strings.EqualFold(c.Issuer, issuer) {
			return c, true
		}
	}
	return Credential{}, false
}
