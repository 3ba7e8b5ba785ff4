package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh-api/internal/model"
)

func testIssuer() *Issuer {
	return &Issuer{
		Secret:     []byte("test-secret"),
		AccessTTL:  time.Hour,
		RefreshTTL: 30 * 24 * time.Hour,
	}
}

func testUser() *model.User {
	return &model.User{
		ID:           uuid.New(),
		Organization: uuid.New(),
		Email:        "alice@example.com",
		Role:         model.RoleMember,
	}
}

func TestIssueAndVerifyAccess(t *testing.T) {
	iss := testIssuer()
	u := testUser()

	toks, err := iss.Issue(u)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if toks.Access == "" || toks.Refresh == "" {
		t.Fatalf("Issue() returned empty token pair: %+v", toks)
	}

	claims, err := iss.Verify(toks.Access, TokenAccess)
	if err != nil {
		t.Fatalf("Verify(access) error = %v", err)
	}
	if claims.UserID != u.ID {
		t.Errorf("UserID = %v, want %v", claims.UserID, u.ID)
	}
	if claims.Organization != u.Organization {
		t.Errorf("Organization = %v, want %v", claims.Organization, u.Organization)
	}
	if claims.Email != u.Email {
		t.Errorf("Email = %q, want %q", claims.Email, u.Email)
	}
	if claims.Role != model.RoleMember {
		t.Errorf("Role = %q, want %q", claims.Role, model.RoleMember)
	}
	if claims.Kind != TokenAccess {
		t.Errorf("Kind = %q, want %q", claims.Kind, TokenAccess)
	}
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	iss := testIssuer()
	toks, err := iss.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := iss.Verify(toks.Refresh, TokenAccess); err == nil {
		t.Error("Verify(refresh token as access) should fail")
	}
	if _, err := iss.Verify(toks.Access, TokenRefresh); err == nil {
		t.Error("Verify(access token as refresh) should fail")
	}
	if _, err := iss.Verify(toks.Refresh, TokenRefresh); err != nil {
		t.Errorf("Verify(refresh as refresh) error = %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	iss := testIssuer()
	toks, err := iss.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	other := &Issuer{Secret: []byte("other-secret"), AccessTTL: time.Hour, RefreshTTL: time.Hour}
	if _, err := other.Verify(toks.Access, TokenAccess); err == nil {
		t.Error("Verify with wrong secret should fail")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	iss := &Issuer{Secret: []byte("test-secret"), AccessTTL: -time.Minute, RefreshTTL: time.Hour}
	toks, err := iss.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := iss.Verify(toks.Access, TokenAccess); err == nil {
		t.Error("Verify(expired token) should fail")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	iss := testIssuer()
	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := iss.Verify(raw, TokenAccess); err == nil {
			t.Errorf("Verify(%q) should fail", raw)
		}
	}
}
