package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  Identity
	}{
		{
			name:  "full identity",
			value: `{"accountData":{"accountId":"alice.near","devicePublicKey":"ed25519:abc"}}`,
			want:  Identity{AccountID: "alice.near", PublicKey: "ed25519:abc"},
		},
		{
			name:  "missing header",
			value: "",
			want:  Identity{AccountID: "near"},
		},
		{
			name:  "invalid json degrades to placeholder",
			value: `{"accountData":`,
			want:  Identity{AccountID: "near"},
		},
		{
			name:  "empty object",
			value: `{}`,
			want:  Identity{AccountID: "near"},
		},
		{
			name:  "public key kept when account id missing",
			value: `{"accountData":{"devicePublicKey":"ed25519:abc"}}`,
			want:  Identity{AccountID: "near", PublicKey: "ed25519:abc"},
		},
		{
			name:  "unexpected type degrades to placeholder",
			value: `"just a string"`,
			want:  Identity{AccountID: "near"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromHeader(tt.value, "near"))
		})
	}
}
