package secret

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	c, err := NewCodec("test-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plaintext := "Analyze this resume: {resume_text}"
	sealed, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !IsSealed(sealed) {
		t.Errorf("sealed string %q not recognized", sealed)
	}
	if strings.Contains(sealed, "resume") {
		t.Error("sealed string leaks plaintext")
	}

	got, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != plaintext {
		t.Errorf("round trip = %q, want %q", got, plaintext)
	}
}

func TestFreshNonce(t *testing.T) {
	c, _ := NewCodec("test-secret")

	a, _ := c.Encrypt("same content")
	b, _ := c.Encrypt("same content")
	if a == b {
		t.Error("two encryptions produced identical sealed strings")
	}
}

func TestWrongKey(t *testing.T) {
	c1, _ := NewCodec("key-one")
	c2, _ := NewCodec("key-two")

	sealed, _ := c1.Encrypt("secret prompt")
	if _, err := c2.Decrypt(sealed); err == nil {
		t.Error("decryption with wrong key succeeded")
	}
}

func TestMalformed(t *testing.T) {
	c, _ := NewCodec("test-secret")

	for _, s := range []string{"", "plaintext", "gcm:only-two", "aes:a:b:c"} {
		if _, err := c.Decrypt(s); err == nil {
			t.Errorf("Decrypt(%q) succeeded, want error", s)
		}
	}
}

func TestEmptyKey(t *testing.T) {
	if _, err := NewCodec(""); err == nil {
		t.Error("NewCodec with empty key succeeded")
	}
}
