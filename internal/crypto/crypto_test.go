package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateRSAKeypair(t *testing.T) {
	require := require.New(t)

	kp, err := GenerateRSAKeypair()
	require.NoError(err)

	pub, priv, err := ParseRSAPrivateKey(kp.PrivateKey)
	require.NoError(err)
	require.Equal(2048, priv.N.BitLen())

	parsed, err := ParseRSAPublicKey(kp.PublicKey)
	require.NoError(err)
	require.True(pub.Equal(parsed))
}

func TestParseRSAPublicKeyRejectsGarbage(t *testing.T) {
	require := require.New(t)

	_, err := ParseRSAPublicKey([]byte("not a key"))
	require.Error(err)
}
