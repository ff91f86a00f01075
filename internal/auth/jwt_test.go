package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("ops", RoleAdmin, "classping", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens to be issued")
	}

	claims, err := Parse(pair.AccessToken, "secret", "classping")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "ops" {
		t.Fatalf("expected subject ops, got %q", claims.Subject)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("expected role %q, got %q", RoleAdmin, claims.Role)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("ops", RoleAdmin, "classping", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "other-secret", "classping"); err == nil {
		t.Fatalf("expected error for wrong key")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	pair, err := Issue("ops", RoleAdmin, "someone-else", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "classping"); err == nil {
		t.Fatalf("expected error for issuer mismatch")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	pair, err := Issue("ops", RoleAdmin, "classping", "secret", -time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "classping"); err == nil {
		t.Fatalf("expected error for expired token")
	}
}
