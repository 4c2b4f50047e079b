package githubapp

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/Sujin1135/mangonaut/internal/apperr"
)

var pemArmorPattern = regexp.MustCompile(`-----[A-Z ]+-----`)

// ParsePrivateKey decodes a GitHub App private key delivered as base64 of
// a PEM block. Secret stores tend to re-encode the PEM (sometimes with
// URL-safe base64), so the input is normalized first. Keys in the legacy
// PKCS#1 format ("RSA PRIVATE KEY" armor) are wrapped into PKCS#8 before
// parsing so a single parser handles both.
func ParsePrivateKey(encoded string) (*rsa.PrivateKey, error) {
	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimSpace(encoded))
	pemBytes, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfiguration, "github private key is not valid base64", err)
	}
	pemText := string(pemBytes)
	isPKCS1 := strings.Contains(pemText, "BEGIN RSA PRIVATE KEY")

	armorless := pemArmorPattern.ReplaceAllString(pemText, "")
	armorless = strings.Join(strings.Fields(armorless), "")
	keyBytes, err := base64.StdEncoding.DecodeString(armorless)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfiguration, "github private key PEM body is not valid base64", err)
	}

	if isPKCS1 {
		keyBytes = wrapPKCS1InPKCS8(keyBytes)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(keyBytes)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfiguration, "github private key is not parseable", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, apperr.Newf(apperr.CodeConfiguration, "github private key has unexpected type %T", parsed)
	}
	return rsaKey, nil
}

// wrapPKCS1InPKCS8 produces a PKCS#8 PrivateKeyInfo around raw PKCS#1 key
// bytes: SEQUENCE { INTEGER 0, SEQUENCE { OID rsaEncryption, NULL },
// OCTET STRING <pkcs1> }.
func wrapPKCS1InPKCS8(pkcs1 []byte) []byte {
	// AlgorithmIdentifier for rsaEncryption (OID 1.2.840.113549.1.1.1).
	rsaAlgorithm := []byte{
		0x30, 0x0d,
		0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x01,
		0x05, 0x00,
	}
	version := []byte{0x02, 0x01, 0x00}

	var body []byte
	body = append(body, version...)
	body = append(body, rsaAlgorithm...)
	body = append(body, derEncode(0x04, pkcs1)...)
	return derEncode(0x30, body)
}

// derEncode prepends a DER tag and length to content. Lengths below 128
// use the short form; longer content gets a length-of-length prefix
// (0x81..0x83) followed by big-endian length bytes.
func derEncode(tag byte, content []byte) []byte {
	n := len(content)
	var header []byte
	switch {
	case n < 0x80:
		header = []byte{tag, byte(n)}
	case n < 0x100:
		header = []byte{tag, 0x81, byte(n)}
	case n < 0x10000:
		header = []byte{tag, 0x82, byte(n >> 8), byte(n)}
	default:
		header = []byte{tag, 0x83, byte(n >> 16), byte(n >> 8), byte(n)}
	}
	return append(header, content...)
}
