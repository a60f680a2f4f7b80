package crypto

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEncryptDecrypt(t *testing.T) {
	key, err := DeriveKey(testKey)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}

	a, err := Encrypt("p256dh-value", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, _ := Encrypt("p256dh-value", key)
	if a == b {
		t.Fatal("two encryptions of the same value must differ")
	}

	got, err := Decrypt(a, key)
	if err != nil || got != "p256dh-value" {
		t.Fatalf("Decrypt = %q, %v", got, err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	key, _ := DeriveKey(testKey)
	other, _ := DeriveKey(strings.Repeat("ab", 32))

	enc, _ := Encrypt("secret", key)
	if _, err := Decrypt(enc, other); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("err = %v, want ErrDecrypt", err)
	}
}

func TestDeriveKey_Invalid(t *testing.T) {
	for _, k := range []string{"zz", "abcd"} {
		if _, err := DeriveKey(k); err == nil {
			t.Errorf("DeriveKey(%q) should fail", k)
		}
	}
}

func TestFieldCipher(t *testing.T) {
	plain, _ := NewFieldCipher("")
	if v, _ := plain.Seal("x"); v != "x" {
		t.Fatalf("disabled cipher changed value: %q", v)
	}

	c, err := NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	sealed, err := c.Seal("auth-secret")
	if err != nil || sealed == "auth-secret" {
		t.Fatalf("Seal = %q, %v", sealed, err)
	}
	opened, err := c.Open(sealed)
	if err != nil || opened != "auth-secret" {
		t.Fatalf("Open = %q, %v", opened, err)
	}
	if v, _ := c.Seal(""); v != "" {
		t.Fatal("empty values stay empty")
	}
}
