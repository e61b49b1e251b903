package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Token string `json:"token"`
	N     int    `json:"n"`
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := DeriveStorageKey([]byte("machine-1"), []byte("salt"))
	require.Len(t, key, 32)

	in := payload{Token: "tok-123", N: 7}
	ct, nonce, err := Seal(in, key)
	require.NoError(t, err)
	require.NotEmpty(t, ct)
	require.Len(t, nonce, 12)

	var out payload
	require.NoError(t, Open(ct, nonce, key, &out))
	assert.Equal(t, in, out)
}

func TestOpen_WrongKeyFails(t *testing.T) {
	key := DeriveStorageKey([]byte("machine-1"), []byte("salt"))
	other := DeriveStorageKey([]byte("machine-2"), []byte("salt"))

	ct, nonce, err := Seal(payload{Token: "secret"}, key)
	require.NoError(t, err)

	var out payload
	err = Open(ct, nonce, other, &out)
	assert.Error(t, err)
}

func TestSeal_NonceUniquePerCall(t *testing.T) {
	key := DeriveStorageKey([]byte("machine-1"), []byte("salt"))

	_, n1, err := Seal(payload{Token: "a"}, key)
	require.NoError(t, err)
	_, n2, err := Seal(payload{Token: "a"}, key)
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
}

func TestDeriveStorageKey_Deterministic(t *testing.T) {
	a := DeriveStorageKey([]byte("machine-1"), []byte("salt"))
	b := DeriveStorageKey([]byte("machine-1"), []byte("salt"))
	c := DeriveStorageKey([]byte("machine-1"), []byte("other"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
