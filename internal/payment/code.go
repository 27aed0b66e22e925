package payment

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet deliberately excludes 0/O and 1/I. The code is typed by a
// human into a bank transfer form, so every character must survive bad
// handwriting, bank-app fonts, and phone-call dictation.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// maxCodeAttempts bounds the uniqueness retry loop. Collisions are rare at
// length 8; hitting the bound means something is wrong (store full of stale
// active intents) and the caller should retry the whole request.
const maxCodeAttempts = 5

func randomCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
