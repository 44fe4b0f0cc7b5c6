package auth

import (
	"strings"
	"testing"
)

func TestHashSecretRoundTrip(t *testing.T) {
	stored, err := HashSecret("cs_abc")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.Contains(stored, "$") {
		t.Fatalf("stored=%q missing salt separator", stored)
	}
	if !VerifySecret(stored, "cs_abc") {
		t.Fatalf("verify failed for correct secret")
	}
	if VerifySecret(stored, "cs_abd") {
		t.Fatalf("verify passed for wrong secret")
	}
	other, _ := HashSecret("cs_abc")
	if other == stored {
		t.Fatalf("salts should differ")
	}
}

func TestVerifySecretMalformed(t *testing.T) {
	for _, stored := range []string{"", "nodollar", "zz$00", "00$"} {
		if VerifySecret(stored, "x") {
			t.Fatalf("stored=%q verified", stored)
		}
	}
}

func TestHashAPIKeyStable(t *testing.T) {
	if HashAPIKey("sk_1") != HashAPIKey("sk_1") {
		t.Fatalf("hash not deterministic")
	}
	if len(HashAPIKey("sk_1")) != 64 {
		t.Fatalf("len=%d want=64", len(HashAPIKey("sk_1")))
	}
}
