package security

import (
	"errors"
	"testing"
	"time"
)

func TestUserTokenRoundTrip(t *testing.T) {
	token, errGen := GenerateToken("secret", 7, 3, "owner", time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 7 || claims.CompanyID != 3 || claims.Username != "owner" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, errGen := GenerateToken("secret", 7, 3, "owner", time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	if _, errParse := ParseToken("other", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, errGen := GenerateToken("secret", 7, 3, "owner", -time.Minute)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	if _, errParse := ParseToken("secret", token); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestAdminTokenNotValidAsUserToken(t *testing.T) {
	token, errGen := GenerateAdminToken("secret", 9, "root", time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 0 {
		t.Fatalf("admin token must not carry a user ID, got %d", claims.UserID)
	}

	adminClaims, errAdmin := ParseAdminToken("secret", token)
	if errAdmin != nil {
		t.Fatalf("parse admin: %v", errAdmin)
	}
	if adminClaims.AdminID != 9 || adminClaims.Username != "root" {
		t.Fatalf("unexpected admin claims: %+v", adminClaims)
	}
}

func TestGenerateVerificationCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, errGen := GenerateVerificationCode()
		if errGen != nil {
			t.Fatalf("generate: %v", errGen)
		}
		if len(code) != 4 || code < "1000" || code > "9999" {
			t.Fatalf("code out of range: %q", code)
		}
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hashed, errHash := HashPassword("correct-horse")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if hashed == "correct-horse" {
		t.Fatalf("expected a hash, got the plaintext back")
	}
	if !CheckPassword(hashed, "correct-horse") {
		t.Fatalf("expected the right password to verify")
	}
	if CheckPassword(hashed, "wrong-horse") {
		t.Fatalf("expected the wrong password to fail")
	}
}
