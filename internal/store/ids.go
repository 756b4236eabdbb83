package store

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

// newQuestionCode returns Q-<suffix> where suffix is 8 chars of base32 (uppercase, no padding).
// 8 chars base32 ~= 40 bits of space, plenty for hand-entered catalogues.
func newQuestionCode() (string, error) {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return "Q-" + strings.ToUpper(enc.EncodeToString(b[:])), nil
}
