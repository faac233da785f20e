package password

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding %q", hash)
	}
	if !Verify("s3cret", hash) {
		t.Fatal("expected password to verify")
	}
	if Verify("other", hash) {
		t.Fatal("expected mismatch")
	}
	if Verify("s3cret", "$argon2id$v=19$m=bad$x$y") {
		t.Fatal("expected malformed hash to fail")
	}
}

func TestGenerateIsRandom(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _ := Generate()
	if a == b || len(a) != 24 {
		t.Fatalf("unexpected passwords %q %q", a, b)
	}
}
