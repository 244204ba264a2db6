package httpsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"strings"
	"testing"

	"github.com/go-fed/httpsig"
	"github.com/stretchr/testify/require"
)

func TestSignRequest(t *testing.T) {
	require := require.New(t)
	req, err := http.NewRequest("GET", "https://example.com/users/foo", nil)
	require.NoError(err)
	req.Header.Set("Accept", "application/ld+json")

	const keyID = "https://example.com/users/bar#public-key"
	privatekey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)
	pubKey := &privatekey.PublicKey

	err = Sign(req, keyID, privatekey)
	require.NoError(err)

	verifier, err := httpsig.NewVerifier(req)
	require.NoError(err)
	require.Equal(keyID, verifier.KeyId())
	err = verifier.Verify(pubKey, httpsig.RSA_SHA256)
	require.NoError(err, "req.Signature: %s", req.Header.Get("Signature"))
}

func TestSignPostRoundTrip(t *testing.T) {
	require := require.New(t)
	req, err := http.NewRequest("POST", "https://remote.example/inbox", strings.NewReader(`{}`))
	require.NoError(err)
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`)
	req.Header.Set("User-Agent", "wren/1.0")

	const keyID = "https://example.com/users/foo#public-key"
	privatekey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)

	require.NoError(Sign(req, keyID, privatekey))
	require.Contains(req.Header.Get("Signature"), `headers="(request-target) date content-type accept user-agent"`)

	err = Verify(req, func(id string) (crypto.PublicKey, error) {
		require.Equal(keyID, id)
		return &privatekey.PublicKey, nil
	})
	require.NoError(err)
}

func TestVerifyRejectsTamperedRequest(t *testing.T) {
	require := require.New(t)
	req, err := http.NewRequest("POST", "https://remote.example/inbox", strings.NewReader(`{}`))
	require.NoError(err)
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "wren/1.0")

	privatekey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)
	require.NoError(Sign(req, "https://example.com/users/foo#public-key", privatekey))

	req.Header.Set("Content-Type", "text/plain")
	err = Verify(req, func(string) (crypto.PublicKey, error) {
		return &privatekey.PublicKey, nil
	})
	require.Error(err)
}

func TestVerifyMissingSignature(t *testing.T) {
	require := require.New(t)
	req, err := http.NewRequest("POST", "https://remote.example/inbox", nil)
	require.NoError(err)
	err = Verify(req, func(string) (crypto.PublicKey, error) {
		t.Fatal("keyFn should not be called")
		return nil, nil
	})
	require.Error(err)
}
