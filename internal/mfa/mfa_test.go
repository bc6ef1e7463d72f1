package mfa

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestEnroll_ProducesValidatableSecretAndBackupCodes(t *testing.T) {
	s := NewService("auth9.test")

	result, err := s.Enroll("alice@example.com")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if result.Secret == "" {
		t.Fatal("expected a non-empty TOTP secret")
	}
	if len(result.QRCodePNG) == 0 {
		t.Error("expected a non-empty QR code PNG")
	}
	if len(result.BackupCodes) != backupCodeCount || len(result.BackupCodeHashes) != backupCodeCount {
		t.Fatalf("expected %d backup codes and hashes, got %d codes / %d hashes",
			backupCodeCount, len(result.BackupCodes), len(result.BackupCodeHashes))
	}

	code, err := totp.GenerateCode(result.Secret, time.Now())
	if err != nil {
		t.Fatalf("generating a code from the enrolled secret: %v", err)
	}
	if !s.ValidateCode(code, result.Secret) {
		t.Error("expected a freshly generated code to validate against the enrolled secret")
	}
}

func TestValidateCode_RejectsWrongCode(t *testing.T) {
	s := NewService("auth9.test")
	result, err := s.Enroll("alice@example.com")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if s.ValidateCode("000000", result.Secret) {
		t.Error("expected an arbitrary code to be rejected (astronomically unlikely to collide)")
	}
}

func TestConsumeBackupCode_SingleUseAndRemovesFromRemaining(t *testing.T) {
	s := NewService("auth9.test")
	result, err := s.Enroll("alice@example.com")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	remaining, err := s.ConsumeBackupCode(result.BackupCodes[3], result.BackupCodeHashes)
	if err != nil {
		t.Fatalf("ConsumeBackupCode failed: %v", err)
	}
	if len(remaining) != backupCodeCount-1 {
		t.Fatalf("expected %d remaining hashes, got %d", backupCodeCount-1, len(remaining))
	}

	if _, err := s.ConsumeBackupCode(result.BackupCodes[3], remaining); err != ErrInvalidCode {
		t.Errorf("expected ErrInvalidCode reusing an already-consumed backup code, got %v", err)
	}
}

func TestConsumeBackupCode_UnknownCodeRejected(t *testing.T) {
	s := NewService("auth9.test")
	result, err := s.Enroll("alice@example.com")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	if _, err := s.ConsumeBackupCode("ZZZZ-ZZZZ", result.BackupCodeHashes); err != ErrInvalidCode {
		t.Errorf("expected ErrInvalidCode for an unknown backup code, got %v", err)
	}
}

func TestGenerateBackupCodes_Format(t *testing.T) {
	codes, err := generateBackupCodes(5)
	if err != nil {
		t.Fatalf("generateBackupCodes failed: %v", err)
	}
	if len(codes) != 5 {
		t.Fatalf("expected 5 codes, got %d", len(codes))
	}
	seen := map[string]bool{}
	for _, c := range codes {
		if len(c) != 9 || c[4] != '-' {
			t.Errorf("code %q does not match XXXX-XXXX shape", c)
		}
		if seen[c] {
			t.Errorf("duplicate backup code generated: %q", c)
		}
		seen[c] = true
	}
}
