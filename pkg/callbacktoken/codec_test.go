package callbacktoken

import (
	"strings"
	"testing"

	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestRoundTrip(t *testing.T) {
	codec, err := NewAEADCodec(testSecret)
	if err != nil {
		t.Fatalf("NewAEADCodec: %v", err)
	}
	token, err := codec.Encode("gen-123")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.ContainsAny(token, "+/=") {
		t.Fatalf("token must be url safe, got %q", token)
	}
	if strings.Contains(token, "gen-123") {
		t.Fatalf("token leaks generation id")
	}
	id, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if id != "gen-123" {
		t.Fatalf("expected gen-123, got %q", id)
	}
}

func TestEncodeIsRandomized(t *testing.T) {
	codec, _ := NewAEADCodec(testSecret)
	a, _ := codec.Encode("gen-123")
	b, _ := codec.Encode("gen-123")
	if a == b {
		t.Fatal("expected distinct tokens for repeated encodes")
	}
}

func TestDecodeRejectsForeignTokens(t *testing.T) {
	codec, _ := NewAEADCodec(testSecret)
	other, _ := NewAEADCodec("another-secret-value-0000")
	foreign, _ := other.Encode("gen-123")

	valid, _ := codec.Encode("gen-123")
	tampered := []byte(valid)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}

	cases := map[string]string{
		"empty":    "",
		"garbage":  "not a token!",
		"short":    "AAAA",
		"foreign":  foreign,
		"tampered": string(tampered),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(token)
			if err == nil {
				t.Fatal("expected decode error")
			}
			if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidToken) {
				t.Fatalf("expected INVALID_TOKEN, got %v", err)
			}
		})
	}
}

func TestNewAEADCodecRequiresSecret(t *testing.T) {
	if _, err := NewAEADCodec("short"); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}
