package crypto

import (
	"bytes"
	"testing"
)

// =====================================================
// Seal / Open
// =====================================================

func TestSealOpen_roundtrip(t *testing.T) {
	s, err := NewSealer("device-secret")
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}
	plaintext := []byte(`{"healthLogs":[{"id":"h1","bpSystolic":120}]}`)

	sealed, err := s.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Contains(sealed, []byte("bpSystolic")) {
		t.Error("Seal() output contains plaintext")
	}

	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Open() = %q, want %q", opened, plaintext)
	}
}

func TestSeal_uniqueNonce(t *testing.T) {
	s, _ := NewSealer("device-secret")
	a, _ := s.Seal([]byte("same"))
	b, _ := s.Seal([]byte("same"))
	if bytes.Equal(a, b) {
		t.Error("Seal() produced identical output twice")
	}
}

func TestOpen_rejects(t *testing.T) {
	s, _ := NewSealer("device-secret")
	other, _ := NewSealer("other-secret")
	sealed, _ := s.Seal([]byte("payload"))

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name   string
		sealer *Sealer
		data   []byte
	}{
		{"wrong key", other, sealed},
		{"tampered", s, tampered},
		{"too short", s, []byte{1, 2, 3}},
		{"empty", s, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.sealer.Open(tt.data); err != ErrInvalidCiphertext {
				t.Errorf("Open() error = %v, want ErrInvalidCiphertext", err)
			}
		})
	}
}

// =====================================================
// Keys
// =====================================================

func TestNewSealer_emptySecret(t *testing.T) {
	if _, err := NewSealer(""); err != ErrInvalidKey {
		t.Errorf("NewSealer(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestDeriveKey(t *testing.T) {
	if len(DeriveKey("x")) != 32 {
		t.Errorf("DeriveKey() length = %d, want 32", len(DeriveKey("x")))
	}
	if !bytes.Equal(DeriveKey("x"), DeriveKey("x")) {
		t.Error("DeriveKey() is not deterministic")
	}
	if bytes.Equal(DeriveKey("x"), DeriveKey("y")) {
		t.Error("DeriveKey() collides for different secrets")
	}
}
