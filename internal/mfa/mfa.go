// Package mfa provides TOTP enrollment/verification and backup-code
// recovery, folded in alongside the WebAuthn Engine as the second-factor
// option for accounts that haven't registered a passkey.
package mfa

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"image/png"
	"math/big"

	"github.com/pquerna/otp/totp"

	"github.com/auth9/auth9/internal/auth"
)

var (
	ErrNotEnabled  = errors.New("mfa not enabled for user")
	ErrInvalidCode = errors.New("invalid mfa code")
)

const backupCodeCount = 10

// Service handles TOTP enrollment/validation and backup-code recovery.
// Secrets and hashed backup codes are persisted by the caller (the enroll
// handler), not by this package — Service is pure TOTP/code logic.
type Service struct {
	issuer string
	hasher auth.PasswordHasher
}

func NewService(issuer string) *Service {
	return &Service{issuer: issuer, hasher: auth.NewBcryptHasher()}
}

// EnrollmentResult carries the secret to persist, the codes a user must
// save (shown once, never stored in plaintext), and a QR code PNG.
type EnrollmentResult struct {
	Secret           string
	QRCodePNG        []byte
	BackupCodes      []string
	BackupCodeHashes []string
}

// Enroll generates a fresh TOTP secret and a set of backup codes. The
// enroll handler persists the secret and hashes with MFA still disabled and
// only enables MFA once the first TOTP code verifies, so a botched scan
// doesn't lock an account into an unusable secret.
func (s *Service) Enroll(accountName string) (*EnrollmentResult, error) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.issuer, AccountName: accountName})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	var buf bytes.Buffer
	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr png: %w", err)
	}
	codes, err := generateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, code := range codes {
		h, err := s.hasher.Hash(code)
		if err != nil {
			return nil, fmt.Errorf("hash backup code: %w", err)
		}
		hashes[i] = h
	}
	return &EnrollmentResult{
		Secret: key.Secret(), QRCodePNG: buf.Bytes(),
		BackupCodes: codes, BackupCodeHashes: hashes,
	}, nil
}

// ValidateCode checks a 6-digit TOTP code against the stored secret,
// tolerating the standard ±1 period clock skew.
func (s *Service) ValidateCode(code, secret string) bool {
	return totp.Validate(code, secret)
}

// ConsumeBackupCode finds the first stored hash the given code matches and
// returns the remaining hashes (for persistence) or ErrInvalidCode if none
// match. Backup codes are single-use: the caller must persist the
// returned slice in place of the original.
func (s *Service) ConsumeBackupCode(code string, hashes []string) ([]string, error) {
	for i, h := range hashes {
		if s.hasher.Compare(h, code) == nil {
			remaining := make([]string, 0, len(hashes)-1)
			remaining = append(remaining, hashes[:i]...)
			remaining = append(remaining, hashes[i+1:]...)
			return remaining, nil
		}
	}
	return nil, ErrInvalidCode
}

// generateBackupCodes returns cryptographically random recovery codes in
// XXXX-XXXX form, using a charset without I/O/0/1 to avoid transcription
// ambiguity.
func generateBackupCodes(count int) ([]string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codes := make([]string, count)
	for i := 0; i < count; i++ {
		code := make([]byte, 8)
		for j := range code {
			num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
			if err != nil {
				return nil, fmt.Errorf("crypto/rand: %w", err)
			}
			code[j] = chars[num.Int64()]
		}
		codes[i] = string(code[:4]) + "-" + string(code[4:])
	}
	return codes, nil
}
