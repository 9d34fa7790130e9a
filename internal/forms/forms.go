package forms

import (
	"errors"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/gradtrust/portal/internal/ethsig"
)

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrAddressLength    = errors.New("invalid ethereum address length")
)

// UserMessage turns a validation error into the banner text shown on the form.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match. Please try again."
	case errors.Is(err, ErrAddressLength):
		return "Please enter a valid Ethereum address."
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

// characters stripped from free-text inputs before they leave the portal
const unsafeChars = `'"\<>;`

// Sanitize trims surrounding whitespace and drops quote, backslash, angle
// bracket and semicolon characters.
func Sanitize(input string) string {
	trimmed := strings.TrimSpace(input)

	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeChars, r) {
			return -1
		}
		return r
	}, trimmed)
}

type SignUpRequest struct {
	Username        string `form:"username" binding:"required,max=255"`
	Password        string `form:"password" binding:"required"`
	ConfirmPassword string `form:"confirmPassword" binding:"required"`
	Address         string `form:"address" binding:"required"`
}

// Normalize sanitises every field and applies the sign-up checks in the order
// the form reports them.
func (r SignUpRequest) Normalize() (SignUpRequest, error) {
	out := SignUpRequest{
		Username:        Sanitize(r.Username),
		Password:        Sanitize(r.Password),
		ConfirmPassword: Sanitize(r.ConfirmPassword),
		Address:         Sanitize(r.Address),
	}

	if out.Password != out.ConfirmPassword {
		return out, ErrPasswordMismatch
	}

	if len(out.Address) != ethsig.AddressLength || !ethsig.IsAddress(out.Address) {
		return out, ErrAddressLength
	}

	return out, nil
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules on gin's validator.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_ = v.RegisterValidation("wallet", func(fl validator.FieldLevel) bool {
			return ethsig.IsAddress(strings.TrimSpace(fl.Field().String()))
		})
	})
}
