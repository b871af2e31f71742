// Package signature verifies the HMAC-SHA256 signatures attached to inbound
// webhook deliveries.
//
// A delivery is signed over its raw, unparsed body and the result is sent in
// the X-Zeal-Signature header as "sha256=<lowercase hex>".
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// Header is the request header carrying the delivery signature
	Header = "X-Zeal-Signature"
	// Prefix is the algorithm tag that precedes the hex digest
	Prefix = "sha256="
)

// Sign returns the header value for body signed with secret
func Sign(body, secret []byte) string {
	return Prefix + hex.EncodeToString(digest(body, secret))
}

// Verify reports whether header is a valid signature of body under secret.
// A missing secret, a header without the sha256= prefix, or a digest that is
// not valid hex all return false.
func Verify(body []byte, header string, secret []byte) bool {
	if len(secret) == 0 {
		return false
	}
	if !strings.HasPrefix(header, Prefix) {
		return false
	}

	supplied, err := hex.DecodeString(strings.TrimPrefix(header, Prefix))
	if err != nil || len(supplied) != sha256.Size {
		return false
	}

	return hmac.Equal(supplied, digest(body, secret))
}

func digest(body, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
