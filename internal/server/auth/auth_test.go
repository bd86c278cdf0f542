package auth_test

import (
	"strings"
	"testing"

	"github.com/bestruirui/sprout/internal/server/auth"
)

func TestGenerateAPIKey(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		key := auth.GenerateAPIKey()
		if !strings.HasPrefix(key, "sk-sprout-") {
			t.Fatalf("key %q missing prefix", key)
		}
		random := strings.TrimPrefix(key, "sk-sprout-")
		if len(random) != 48 {
			t.Fatalf("random part length = %d, want 48", len(random))
		}
		for _, ch := range random {
			if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z') {
				t.Fatalf("key %q contains non-alphanumeric %q", key, ch)
			}
		}
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = struct{}{}
	}
}

func TestHashAPIKey(t *testing.T) {
	key := "sk-sprout-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	h := auth.HashAPIKey(key)
	if len(h) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h))
	}
	if h != auth.HashAPIKey(key) {
		t.Error("hash is not deterministic")
	}
	if h == auth.HashAPIKey(key+"x") {
		t.Error("different keys share a hash")
	}
	if strings.ToLower(h) != h {
		t.Error("hash is not lowercase hex")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	token, _, err := auth.GenerateJWTToken(10)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !auth.VerifyJWTToken(token) {
		t.Error("fresh token does not verify")
	}
	if auth.VerifyJWTToken(token + "tampered") {
		t.Error("tampered token verifies")
	}
	if auth.VerifyJWTToken("not-a-token") {
		t.Error("garbage verifies")
	}
}
