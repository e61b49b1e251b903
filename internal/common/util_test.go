package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	WipeByteArray(buf)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() { WipeByteArray(nil) })
}

func TestGenerateRandByteArray_Basic(t *testing.T) {
	n := 32
	buf := GenerateRandByteArray(n)
	require.Len(t, buf, n)
}

func TestGenerateRandByteArray_EntropyHint(t *testing.T) {
	n := 32
	a := GenerateRandByteArray(n)
	b := GenerateRandByteArray(n)
	assert.False(t, bytes.Equal(a, b), "two random buffers should differ")
}
