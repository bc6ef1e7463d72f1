package crypto

import "testing"

func testKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	v1, err := DecodeHexKey("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"[:64])
	if err != nil {
		t.Fatalf("decoding v1 key: %v", err)
	}
	v2, err := DecodeHexKey("fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"[:64])
	if err != nil {
		t.Fatalf("decoding v2 key: %v", err)
	}
	return v1, v2
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v1, _ := testKeys(t)
	enc, err := NewEncryptor(v1)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	plaintext := "MySuperSecretPassword123!"

	encrypted, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}
	if len(encrypted) < 5 || encrypted[:4] != "enc:" {
		t.Errorf("encrypted output missing 'enc:' prefix: %s", encrypted)
	}

	decrypted, err := enc.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("decrypted text doesn't match original.\ngot: %s\nwant: %s", decrypted, plaintext)
	}
}

func TestDecryptInvalidFormat(t *testing.T) {
	v1, _ := testKeys(t)
	enc, _ := NewEncryptor(v1)

	if _, err := enc.Decrypt("plaintext password"); err == nil {
		t.Error("expected error for plaintext input, got nil")
	}
}

func TestDecryptTamperedData(t *testing.T) {
	v1, _ := testKeys(t)
	enc, _ := NewEncryptor(v1)

	encrypted, _ := enc.Encrypt("test")
	tampered := encrypted[:len(encrypted)-5] + "XXXXX"

	if _, err := enc.Decrypt(tampered); err == nil {
		t.Error("expected error for tampered ciphertext, got nil")
	}
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if len(key) != 64 {
		t.Errorf("generated key has wrong length. got %d, want 64", len(key))
	}
	for _, c := range key {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Errorf("generated key contains non-hex character: %c", c)
			break
		}
	}
}

// TestDecryptWithLegacyKey exercises the rotation path: data encrypted
// under the old (now legacy) key must still decrypt once the current key
// has moved on to v2.
func TestDecryptWithLegacyKey(t *testing.T) {
	v1, v2 := testKeys(t)

	oldEnc, err := NewEncryptor(v1)
	if err != nil {
		t.Fatalf("NewEncryptor(v1) failed: %v", err)
	}
	encryptedUnderV1, err := oldEnc.Encrypt("PasswordFromBeforeRotation")
	if err != nil {
		t.Fatalf("encrypting under v1 failed: %v", err)
	}

	rotated, err := NewEncryptor(v2, v1)
	if err != nil {
		t.Fatalf("NewEncryptor(v2, v1) failed: %v", err)
	}

	decrypted, err := rotated.Decrypt(encryptedUnderV1)
	if err != nil {
		t.Fatalf("decrypting legacy-key ciphertext failed: %v", err)
	}
	if decrypted != "PasswordFromBeforeRotation" {
		t.Errorf("decrypted text mismatch. got: %s", decrypted)
	}

	reEncrypted, err := rotated.Encrypt("PasswordFromBeforeRotation")
	if err != nil {
		t.Fatalf("re-encrypting under current key failed: %v", err)
	}
	if _, err := oldEnc.Decrypt(reEncrypted); err == nil {
		t.Error("expected the old (now-legacy-only) encryptor to fail decrypting data written under the new current key")
	}
}
