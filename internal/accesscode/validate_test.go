package accesscode

import (
	"errors"
	"testing"
	"time"
)

func registry() []AccessCode {
	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)
	return []AccessCode{
		{ID: "a1", Value: "PC-ADMIN", Role: RoleAdmin},
		{ID: "u1", Value: "PC-USER", Role: RoleUser, ExpiresAt: &future},
		{ID: "x1", Value: "PC-OLD", Role: RoleUser, ExpiresAt: &past},
	}
}

func TestValidate_MatchesCaseInsensitiveAndTrims(t *testing.T) {
	match, err := Validate("  pc-user  ", registry(), []string{"a1"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match.Bootstrap || match.Code == nil || match.Code.ID != "u1" {
		t.Fatalf("unexpected match: %+v", match)
	}
}

func TestValidate_InvalidCode(t *testing.T) {
	_, err := Validate("PC-AB12-CD34-EF56", registry(), []string{"a1"}, "")
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestValidate_ExpiredCode(t *testing.T) {
	_, err := Validate("PC-OLD", registry(), []string{"a1"}, "")
	if !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
}

func TestValidate_BootstrapExactMatch(t *testing.T) {
	match, err := Validate("MASTER-KEY", registry(), nil, "MASTER-KEY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !match.Bootstrap || match.Code != nil {
		t.Fatalf("expected bootstrap match with no code, got %+v", match)
	}
}

func TestValidate_BootstrapCaseSensitive(t *testing.T) {
	_, err := Validate("master-key", registry(), nil, "MASTER-KEY")
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for wrong-case bootstrap secret, got %v", err)
	}
}

func TestValidate_BootstrapDisabledWithoutSecret(t *testing.T) {
	_, err := Validate("MASTER-KEY", registry(), nil, "")
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode when no secret configured, got %v", err)
	}
}

func TestValidate_BootstrapIgnoredOutsideBootstrapMode(t *testing.T) {
	// a1 is role=admin and listed, so bootstrap mode is off and the secret
	// grants nothing.
	_, err := Validate("MASTER-KEY", registry(), []string{"a1"}, "MASTER-KEY")
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode outside bootstrap mode, got %v", err)
	}
}

func TestInBootstrapMode(t *testing.T) {
	codes := registry()

	if !InBootstrapMode(codes, nil) {
		t.Fatal("empty admin list must mean bootstrap mode")
	}
	if InBootstrapMode(codes, []string{"a1"}) {
		t.Fatal("listed admin code must disable bootstrap mode")
	}
	if !InBootstrapMode(codes, []string{"u1"}) {
		t.Fatal("listed non-admin code must not disable bootstrap mode")
	}
	if !InBootstrapMode(codes, []string{"ghost"}) {
		t.Fatal("unknown admin id must not disable bootstrap mode")
	}
	if !InBootstrapMode(nil, []string{"a1"}) {
		t.Fatal("empty registry must mean bootstrap mode")
	}
}

func TestIsAdmin(t *testing.T) {
	codes := registry()

	if !IsAdmin(&codes[0], []string{"a1"}) {
		t.Fatal("expected a1 to be admin")
	}
	if IsAdmin(&codes[0], []string{"u1"}) {
		t.Fatal("admin role without listing must not be admin")
	}
	if IsAdmin(&codes[1], []string{"u1"}) {
		t.Fatal("user role must never be admin")
	}
	if IsAdmin(nil, []string{"a1"}) {
		t.Fatal("nil code must not be admin")
	}
}
