package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the hex encoded sha256 of data.
func Hash(data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// NameKey folds a display name into its uniqueness key: trimmed, inner whitespace
// collapsed and lower-cased.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
