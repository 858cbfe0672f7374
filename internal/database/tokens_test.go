package database

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		name       string
		bearer     string
		wantID     int64
		wantSecret string
		wantErr    bool
	}{
		{name: "valid", bearer: "12.abcdef", wantID: 12, wantSecret: "abcdef"},
		{name: "surrounding space", bearer: " 3.xyz ", wantID: 3, wantSecret: "xyz"},
		{name: "no separator", bearer: "12abcdef", wantErr: true},
		{name: "empty secret", bearer: "12.", wantErr: true},
		{name: "non-numeric id", bearer: "abc.def", wantErr: true},
		{name: "zero id", bearer: "0.def", wantErr: true},
		{name: "negative id", bearer: "-4.def", wantErr: true},
		{name: "empty", bearer: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, secret, err := ParseToken(tt.bearer)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidToken) {
					t.Errorf("ParseToken(%q) error = %v, want ErrInvalidToken", tt.bearer, err)
				}
				return
			}
			if err != nil || id != tt.wantID || secret != tt.wantSecret {
				t.Errorf("ParseToken(%q) = %d, %q, %v", tt.bearer, id, secret, err)
			}
		})
	}
}

func TestCreateAndAuthenticateToken(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	bearer, tok, err := db.CreateToken(ctx, 42, "ci")
	if err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}
	if !strings.HasPrefix(bearer, FormatToken(tok.ID, "")) {
		t.Errorf("bearer %q does not start with token id %d", bearer, tok.ID)
	}

	got, err := db.Authenticate(ctx, bearer)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.UserID != 42 || got.Label != "ci" {
		t.Errorf("Authenticate() = %+v", got)
	}

	// Last use is recorded on the next lookup.
	again, err := db.Authenticate(ctx, bearer)
	if err != nil {
		t.Fatal(err)
	}
	if again.LastUsedAt == nil {
		t.Error("LastUsedAt not recorded")
	}
}

func TestAuthenticateRejects(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	bearer, tok, err := db.CreateToken(ctx, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	_, secret, _ := ParseToken(bearer)

	tests := []struct {
		name   string
		bearer string
	}{
		{"wrong secret", FormatToken(tok.ID, strings.Repeat("0", len(secret)))},
		{"unknown id", FormatToken(tok.ID+1, secret)},
		{"malformed", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := db.Authenticate(ctx, tt.bearer); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Authenticate() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRevokeToken(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	bearer, tok, err := db.CreateToken(ctx, 1, "old")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.CreateToken(ctx, 1, "new"); err != nil {
		t.Fatal(err)
	}

	if err := db.RevokeToken(ctx, tok.ID); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	if _, err := db.Authenticate(ctx, bearer); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("revoked token authenticated: %v", err)
	}
	if err := db.RevokeToken(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("RevokeToken(unknown) error = %v, want ErrNotFound", err)
	}

	tokens, err := db.ListTokens(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 1 || tokens[0].Label != "new" {
		t.Errorf("ListTokens() = %+v, want only the unrevoked token", tokens)
	}
}
