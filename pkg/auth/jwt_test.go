package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lifelink-health/registry/pkg/common/models"
)

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	manager, err := NewJWTManager("unit-test-signing-secret", "lifelink-registry", "lifelink-api", time.Hour)
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}
	return manager
}

func TestIssueAndValidateToken(t *testing.T) {
	manager := newTestManager(t)
	user := models.User{
		ID:    uuid.New(),
		Email: "admin@example.org",
		Role:  models.RoleAdmin,
	}

	token, err := manager.IssueToken(user)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("validating token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("expected user id %s, got %s", user.ID, claims.UserID)
	}
	if claims.Role != models.RoleAdmin {
		t.Errorf("expected role ADMIN, got %s", claims.Role)
	}
	if claims.Email != user.Email {
		t.Errorf("expected email %s, got %s", user.Email, claims.Email)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	manager := newTestManager(t)
	token, err := manager.IssueToken(models.User{ID: uuid.New(), Role: models.RoleDonor})
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := manager.ValidateToken(tampered); err == nil {
		t.Fatal("tampered payload must be rejected")
	}

	if _, err := manager.ValidateToken("not-a-token"); err == nil {
		t.Fatal("malformed token must be rejected")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	manager := newTestManager(t)
	manager.nowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := manager.IssueToken(models.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	manager.nowFunc = time.Now
	if _, err := manager.ValidateToken(token); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestValidateRejectsWrongAudience(t *testing.T) {
	issuing := newTestManager(t)
	token, err := issuing.IssueToken(models.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	other, err := NewJWTManager("unit-test-signing-secret", "lifelink-registry", "other-api", time.Hour)
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("token for another audience must be rejected")
	}
}

func TestNewJWTManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTManager("short", "iss", "aud", time.Hour); err == nil {
		t.Fatal("short secret must be rejected")
	}
}
