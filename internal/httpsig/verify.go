package httpsig

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Verify verifies the signature of the request. The public key for the
// keyId named in the Signature header is resolved through keyFn.
func Verify(req *http.Request, keyFn func(keyID string) (crypto.PublicKey, error)) error {
	sigHeader := req.Header.Get("Signature")
	if sigHeader == "" {
		return errors.New("Signature header is missing")
	}

	var (
		pubKey  crypto.PublicKey
		algo    string
		sig     []byte
		headers []string
		err     error
	)
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("malformed signature part: %s", part)
		}
		k, v := kv[0], strings.Trim(kv[1], "\"")
		switch k {
		case "keyId":
			pubKey, err = keyFn(v)
			if err != nil {
				return err
			}
		case "algorithm":
			algo = v
		case "headers":
			headers = strings.Split(v, " ")
		case "signature":
			sig, err = base64.StdEncoding.DecodeString(v)
			if err != nil {
				return err
			}
		case "created", "expires":
			// ignored, we rely on the date header
		default:
			return fmt.Errorf("unknown signature part: %s", part)
		}
	}
	if pubKey == nil {
		return errors.New("signature missing keyId")
	}

	comparison, err := signatureString(req, headers)
	if err != nil {
		return err
	}
	hash := sha256.Sum256(comparison)

	switch algo {
	case "rsa-sha256":
		return rsaVerify(pubKey, hash[:], sig)
	default:
		return fmt.Errorf("unknown algorithm: %s", algo)
	}
}

func rsaVerify(pubKey crypto.PublicKey, digest, sig []byte) error {
	key, ok := pubKey.(*rsa.PublicKey)
	if !ok {
		return errors.New("expected *rsa.PublicKey")
	}
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest, sig)
}
