package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Role string

// Backend role codes, stored as a single letter on the account row.
const (
	RoleAdmin    Role = "A"
	RoleIssuer   Role = "I"
	RoleVerifier Role = "V"
	RoleHolder   Role = "H"
)

var ErrUnknownRole = errors.New("unknown role")

// ParseRole accepts either the one-letter code or the long role name.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "admin":
		return RoleAdmin, nil
	case "i", "issuer":
		return RoleIssuer, nil
	case "v", "verifier":
		return RoleVerifier, nil
	case "h", "holder":
		return RoleHolder, nil
	default:
		return "", ErrUnknownRole
	}
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleIssuer, RoleVerifier, RoleHolder:
		return true
	default:
		return false
	}
}

func (r Role) Name() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleIssuer:
		return "issuer"
	case RoleVerifier:
		return "verifier"
	case RoleHolder:
		return "holder"
	default:
		return "unknown"
	}
}

// HomePath is where a user lands after signing in. Anything that is not an
// admin, issuer or verifier is treated as a holder.
func (r Role) HomePath() string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleIssuer:
		return "/issuer"
	case RoleVerifier:
		return "/verifier"
	default:
		return "/holder"
	}
}

// AllRoles in the order the manage-users page lists them.
func AllRoles() []Role {
	return []Role{RoleHolder, RoleVerifier, RoleAdmin, RoleIssuer}
}

type Account struct {
	Address  string `json:"address"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// UnmarshalJSON accepts the backend's positional [address, username, role]
// rows as well as the object form.
func (a *Account) UnmarshalJSON(b []byte) error {
	var row []string
	if err := json.Unmarshal(b, &row); err == nil {
		if len(row) < 3 {
			return fmt.Errorf("account row: expected 3 columns, got %d", len(row))
		}
		a.Address, a.Username, a.Role = row[0], row[1], Role(row[2])
		return nil
	}

	type plain Account
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = Account(p)
	return nil
}

// Filter keeps accounts whose address or username contains q, case-insensitively.
func Filter(accounts []Account, q string) []Account {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return accounts
	}

	out := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		if strings.Contains(strings.ToLower(a.Address), q) || strings.Contains(strings.ToLower(a.Username), q) {
			out = append(out, a)
		}
	}
	return out
}
