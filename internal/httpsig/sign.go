// Package httpsig implements the HTTP Signature scheme as defined in draft-cavage-http-signatures-10.
package httpsig

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// RequestTarget is the pseudo-header used to sign the request target.
	RequestTarget = "(request-target)"
)

// Sign signs the request using the given keyID and privateKey.
//
// GET requests are signed over (request-target), host, date and accept.
// POST requests are signed over (request-target), date, content-type,
// accept and user-agent, the set federation peers expect on inbox
// deliveries.
func Sign(req *http.Request, keyID string, privateKey crypto.PrivateKey) error {
	req.Header.Set("Date", time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")) // Date must be in GMT, not UTC 🤯
	headersToSign := []string{
		RequestTarget,
	}
	switch req.Method {
	case "GET":
		headersToSign = append(headersToSign, "host", "date", "accept")
	case "POST":
		headersToSign = append(headersToSign, "date", "content-type", "accept", "user-agent")
	}

	comparison, err := signatureString(req, headersToSign)
	if err != nil {
		return err
	}
	hash := sha256.Sum256(comparison)
	sig, err := rsa.SignPKCS1v15(rand.Reader, privateKey.(*rsa.PrivateKey), crypto.SHA256, hash[:])
	if err != nil {
		return err
	}
	enc := base64.StdEncoding.EncodeToString(sig)
	req.Header.Set("Signature", fmt.Sprintf(`keyId="%s",algorithm="rsa-sha256",headers="%s",signature="%s"`, keyID, strings.Join(headersToSign, " "), enc))
	return nil
}

// signatureString builds the string to be signed from the listed headers,
// in order.
func signatureString(req *http.Request, headers []string) ([]byte, error) {
	var sb bytes.Buffer
	for _, header := range headers {
		switch strings.ToLower(header) {
		case RequestTarget:
			sb.WriteString("(request-target): ")
			sb.WriteString(strings.ToLower(req.Method))
			sb.WriteString(" ")
			sb.WriteString(req.URL.Path)

			if req.URL.RawQuery != "" {
				sb.WriteString("?")
				sb.WriteString(req.URL.RawQuery)
			}
		case "host":
			sb.WriteString("host: ")
			if req.Host != "" {
				sb.WriteString(req.Host)
			} else {
				sb.WriteString(req.URL.Host)
			}
		case "date":
			sb.WriteString("date: ")
			sb.WriteString(req.Header.Get("Date"))
		case "accept":
			sb.WriteString("accept: ")
			sb.WriteString(req.Header.Get("Accept"))
		case "content-type":
			sb.WriteString("content-type: ")
			sb.WriteString(req.Header.Get("Content-Type"))
		case "user-agent":
			sb.WriteString("user-agent: ")
			sb.WriteString(req.Header.Get("User-Agent"))
		case "digest":
			sb.WriteString("digest: ")
			sb.WriteString(req.Header.Get("Digest"))
		default:
			return nil, fmt.Errorf("unknown header to sign: %s", header)
		}
		sb.WriteString("\n")
	}
	return bytes.TrimRight(sb.Bytes(), "\n"), nil // remove trailing newline
}
