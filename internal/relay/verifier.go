package relay

import (
	"errors"

	"github.com/ebuka-odih/nyem-sub003/internal/pkg/validate"
)

var ErrUnauthorized = errors.New("unauthorized")

// Verifier decides whether a client may act as userID.
type Verifier interface {
	Verify(userID int64, token string) error
}

// TrustingVerifier accepts the claimed user id as is.
type TrustingVerifier struct{}

func (TrustingVerifier) Verify(userID int64, _ string) error {
	if userID <= 0 {
		return ErrUnauthorized
	}
	return nil
}

type TokenParser interface {
	VerifyUser(raw string, userID int64) error
}

// TokenVerifier requires an access token issued to userID.
type TokenVerifier struct {
	Tokens TokenParser
}

func (v TokenVerifier) Verify(userID int64, token string) error {
	if userID <= 0 || !validate.Required(token) || v.Tokens == nil {
		return ErrUnauthorized
	}
	if err := v.Tokens.VerifyUser(token, userID); err != nil {
		return errors.Join(ErrUnauthorized, err)
	}
	return nil
}
