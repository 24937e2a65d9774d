package user

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
)

const (
	resetTokenLen   = 64
	resetTokenChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	ErrInvalidResetToken = core.NewValidationError(errors.New("invalid or expired token"))
	ErrExpiredResetToken = core.NewValidationError(errors.New("token expired"))

	// NowFunc is the clock used to check reset token expiry.
	NowFunc = func() time.Time { return time.Now().UTC() }
)

// ResetToken is a single-use password reset token.
type ResetToken struct {
	Token     string
	UserID    string
	CreatedAt time.Time // UTC
}

func newResetToken(userID string) (ResetToken, error) {
	token, err := randomString(resetTokenLen)
	if err != nil {
		return ResetToken{}, errors.Wrap(err, "user.newResetToken")
	}
	return ResetToken{Token: token, UserID: userID, CreatedAt: NowFunc()}, nil
}

// IsExpired reports whether the token was created more than timeout before now.
func (t ResetToken) IsExpired(now time.Time, timeout time.Duration) bool {
	return !t.CreatedAt.Add(timeout).After(now)
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(resetTokenChars)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = resetTokenChars[idx.Int64()]
	}
	return string(buf), nil
}
