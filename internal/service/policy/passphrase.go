package policy

import (
	"context"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
)

// Passphrase compares presented passphrase with the configured one
// The plain passphrase is not kept in memory, only its bcrypt hash
type Passphrase struct {
	hash []byte
}

// Hash passphrase once at startup
// Empty passphrase gives gate that denies everything
func NewPassphrase(passphrase string) (*Passphrase, error) {
	if passphrase == "" {
		return &Passphrase{}, nil
	}

	// bcrypt ignores bytes after 72th, so hash fixed size digest instead
	sum := sha256.Sum256([]byte(passphrase))
	hash, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("can't hash passphrase: %w", err)
	}

	return &Passphrase{hash: hash}, nil
}

func (p *Passphrase) Authorize(ctx context.Context) error {
	cred, _ := CredentialFrom(ctx)

	if len(p.hash) == 0 {
		return fmt.Errorf("%w: operator passphrase is not configured", apperrors.ErrUnauthorized)
	}
	if cred.Passphrase == "" {
		return fmt.Errorf("%w: passphrase required", apperrors.ErrUnauthorized)
	}

	sum := sha256.Sum256([]byte(cred.Passphrase))
	if err := bcrypt.CompareHashAndPassword(p.hash, sum[:]); err != nil {
		return fmt.Errorf("%w: wrong passphrase", apperrors.ErrUnauthorized)
	}

	return nil
}
