package forms

import (
	"errors"
	"testing"
)

const validAddr = "0x9dbe33e61ca2f65118fbcaf182ac2cdd2cab4a42"

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"  alice  ":                   "alice",
		`bob"; DROP TABLE accounts;--`: "bob DROP TABLE accounts--",
		`<script>x</script>`:          "scriptx/script",
		`it's\fine`:                   "itsfine",
		"":                            "",
	}

	for in, want := range tests {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSignUpRequest_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		req     SignUpRequest
		wantErr error
	}{
		{
			name: "ok",
			req:  SignUpRequest{Username: " alice ", Password: "pw1", ConfirmPassword: "pw1", Address: " " + validAddr + " "},
		},
		{
			name:    "password_mismatch",
			req:     SignUpRequest{Username: "alice", Password: "pw1", ConfirmPassword: "pw2", Address: validAddr},
			wantErr: ErrPasswordMismatch,
		},
		{
			name:    "mismatch_wins_over_address",
			req:     SignUpRequest{Username: "alice", Password: "a", ConfirmPassword: "b", Address: "0x1"},
			wantErr: ErrPasswordMismatch,
		},
		{
			name:    "short_address",
			req:     SignUpRequest{Username: "alice", Password: "pw", ConfirmPassword: "pw", Address: "0x1234"},
			wantErr: ErrAddressLength,
		},
		{
			name:    "right_length_not_hex",
			req:     SignUpRequest{Username: "alice", Password: "pw", ConfirmPassword: "pw", Address: "0xzzbe33e61ca2f65118fbcaf182ac2cdd2cab4a42"},
			wantErr: ErrAddressLength,
		},
		{
			name: "sanitised_chars_do_not_break_match",
			req:  SignUpRequest{Username: "alice", Password: "pw;", ConfirmPassword: "pw", Address: validAddr},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.req.Normalize()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got err %v, want %v", err, tt.wantErr)
			}
			if err == nil && (out.Username != "alice" || out.Address != validAddr) {
				t.Fatalf("unexpected normalised request %+v", out)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(ErrPasswordMismatch); got != "Passwords do not match. Please try again." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := UserMessage(ErrAddressLength); got != "Please enter a valid Ethereum address." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := UserMessage(nil); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}
