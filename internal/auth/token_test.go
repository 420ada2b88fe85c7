package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/ridehub/internal/model"
)

func newTestTokenService() *TokenService {
	return NewTokenService(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "ridehub",
	})
}

var testUser = &model.User{ID: "user-1", Email: "rider@example.com", Role: model.RoleRider}

func TestTokenService_IssuePairAndVerify(t *testing.T) {
	s := newTestTokenService()

	tokens, err := s.IssuePair(testUser)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("tokens = %+v, want both issued", tokens)
	}

	claim, err := s.VerifyAccess(tokens.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess returned error: %v", err)
	}
	want := model.Claim{UserID: "user-1", Email: "rider@example.com", Role: model.RoleRider}
	if *claim != want {
		t.Errorf("claim = %+v, want %+v", *claim, want)
	}

	if _, err := s.VerifyRefresh(tokens.RefreshToken); err != nil {
		t.Errorf("VerifyRefresh returned error: %v", err)
	}
}

func TestTokenService_RejectsSwappedTokenTypes(t *testing.T) {
	s := newTestTokenService()
	tokens, _ := s.IssuePair(testUser)

	if _, err := s.VerifyAccess(tokens.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyAccess(refresh) error = %v, want ErrInvalidToken", err)
	}
	if _, err := s.VerifyRefresh(tokens.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyRefresh(access) error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	s := newTestTokenService()
	issuedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issuedAt }

	token, err := s.IssueAccess(testUser)
	if err != nil {
		t.Fatalf("IssueAccess returned error: %v", err)
	}

	s.now = func() time.Time { return issuedAt.Add(16 * time.Minute) }
	if _, err := s.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenService_RejectsForeignSignature(t *testing.T) {
	other := NewTokenService(TokenConfig{
		AccessSecret: "other-secret",
		AccessTTL:    time.Minute,
		Issuer:       "ridehub",
	})
	token, _ := other.IssueAccess(testUser)

	if _, err := newTestTokenService().VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	if _, err := newTestTokenService().VerifyAccess("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}
