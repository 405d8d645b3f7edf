package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	SignaturePrefix = "sha256="
)

var (
	errMissingSignature = errors.New("missing signature")
	errInvalidSignature = errors.New("invalid signature")
)

// VerifySignature checks the HMAC-SHA256 signature GitHub sends with every
// delivery. Only sha256 signatures are accepted.
func VerifySignature(payload []byte, signature, secret string) error {
	if signature == "" {
		return errMissingSignature
	}

	if !strings.HasPrefix(signature, SignaturePrefix) {
		return errInvalidSignature
	}

	if err := github.ValidateSignature(signature, payload, []byte(secret)); err != nil {
		return fmt.Errorf("%w: %v", errInvalidSignature, err)
	}

	return nil
}
