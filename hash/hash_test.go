package hash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func TestSumMatchesBlake3XOF(t *testing.T) {
	h := blake3.New()
	h.Write([]byte("abc"))
	h.Write([]byte("def"))
	var expected [Size]byte
	_, err := h.Digest().Read(expected[:])
	require.NoError(t, err)

	require.Equal(t, expected, Sum([]byte("abc"), []byte("def")))
	require.Equal(t, expected, Sum([]byte("abcdef")))
}

func TestSumPrefixIsBlake3Sum256(t *testing.T) {
	sum := Sum([]byte("hello"))
	short := blake3.Sum256([]byte("hello"))
	require.True(t, bytes.Equal(short[:], sum[:32]))
}

func TestSumReusesHashers(t *testing.T) {
	a := Sum([]byte{1})
	b := Sum([]byte{2})
	require.NotEqual(t, a, b)
	require.Equal(t, a, Sum([]byte{1}))
}
