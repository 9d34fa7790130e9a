package audit

import "time"

// Event records one state-changing action taken through the portal. The
// backend stays authoritative; this is the portal's own trail of who asked
// for what.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Address   string    `json:"address,omitempty"`
	Role      string    `json:"role,omitempty"`
	Action    Action    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	ClientIP  string    `json:"clientIp,omitempty"`
	Device    string    `json:"device,omitempty"`
}

type Action string

const (
	ActionLogin            Action = "login"
	ActionSignUp           Action = "sign_up"
	ActionIssuerCreate     Action = "issuer_create"
	ActionIssuerRegister   Action = "issuer_register"
	ActionCredentialIssue  Action = "credential_issue"
	ActionRoleUpdate       Action = "role_update"
	ActionAccountDelete    Action = "account_delete"
	ActionRootSignature    Action = "merkle_root_signature"
	ActionClearLastUpdate  Action = "merkle_clear_last_update"
	ActionCredentialVerify Action = "credential_verify"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// OutcomeOf maps an action error onto its outcome.
func OutcomeOf(err error) Outcome {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
