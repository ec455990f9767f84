package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("password stored in clear")
	}
	if err := CheckPassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("matching password rejected: %v", err)
	}
	if CheckPassword(hash, "correct horse") == nil {
		t.Fatal("wrong password accepted")
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	for email, want := range map[string]string{
		"ada@example.com":        "ada@example.com",
		" User.Case@Example.COM": "user.case@example.com",
	} {
		id := bson.NewObjectID()
		token, exp, err := m.GenerateToken(id, email)
		if err != nil {
			t.Fatalf("GenerateToken(%q): %v", email, err)
		}
		if time.Until(exp) <= 0 {
			t.Fatalf("expiry %v not in the future", exp)
		}

		claims, err := m.VerifyToken(token)
		if err != nil {
			t.Fatalf("VerifyToken: %v", err)
		}
		if claims.UserID != id.Hex() || claims.Email != want {
			t.Fatalf("claims = %s/%s, want %s/%s", claims.UserID, claims.Email, id.Hex(), want)
		}
	}
}

func TestJWTManager_VerifiesRetiredKid(t *testing.T) {
	keys := map[string]string{"2025": "old-secret", "2026": "new-secret"}
	id := bson.NewObjectID()

	before, _, err := NewJWTManagerFromKeys(keys, "2025", time.Hour).GenerateToken(id, "rot@example.com")
	if err != nil {
		t.Fatalf("GenerateToken with 2025: %v", err)
	}

	current := NewJWTManagerFromKeys(keys, "2026", time.Hour)
	after, _, err := current.GenerateToken(id, "rot@example.com")
	if err != nil {
		t.Fatalf("GenerateToken with 2026: %v", err)
	}

	for name, tkn := range map[string]string{"retired kid": before, "active kid": after} {
		if _, err := current.VerifyToken(tkn); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}

func TestJWTManager_RejectsNonObjectIDSubject(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	tkn, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "not-an-object-id",
		Email:  "x@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.VerifyToken(tkn); err == nil {
		t.Fatal("token with malformed user id verified")
	}
}

func TestJWTManager_RejectsForeignAndUnknownKeys(t *testing.T) {
	m := NewJWTManagerFromKeys(map[string]string{"k1": "secret-one"}, "k1", 5*time.Minute)
	other := NewJWTManagerFromKeys(map[string]string{"k9": "secret-nine"}, "k9", 5*time.Minute)
	forged := NewJWTManagerFromKeys(map[string]string{"k1": "not-the-secret"}, "k1", 5*time.Minute)

	id := bson.NewObjectID()
	for name, mgr := range map[string]*JWTManager{"unknown kid": other, "wrong secret": forged} {
		tkn, _, err := mgr.GenerateToken(id, "x@example.com")
		if err != nil {
			t.Fatalf("%s: GenerateToken failed: %v", name, err)
		}
		if _, err := m.VerifyToken(tkn); err == nil {
			t.Fatalf("%s: VerifyToken should have failed", name)
		}
	}
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)
	tkn, _, err := m.GenerateToken(bson.NewObjectID(), "late@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc.def":  {"abc.def", true},
		"  Bearer  xyz  ": {"xyz", true},
		"Bearer":          {"", false},
		"":                {"", false},
	}
	for in, want := range cases {
		got, ok := BearerToken(in)
		if got != want.token || ok != want.ok {
			t.Fatalf("BearerToken(%q) = %q, %v; want %q, %v", in, got, ok, want.token, want.ok)
		}
	}
}
