// Package idgen generates snapshot identifiers backed by nanoid.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// SnapshotPrefix is prepended to every snapshot ID.
const SnapshotPrefix = "snap-"

// Alphabet is lowercase-only so IDs survive case-folding in URLs and shells.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 12

// NewSnapshotID returns a fresh snapshot ID such as "snap-k3v9q0x2m1ab".
func NewSnapshotID() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return SnapshotPrefix + id, nil
}

// IsSnapshotID reports whether s has the shape produced by NewSnapshotID.
func IsSnapshotID(s string) bool {
	rest, ok := strings.CutPrefix(s, SnapshotPrefix)
	if !ok || len(rest) != Length {
		return false
	}
	for _, c := range rest {
		if !strings.ContainsRune(Alphabet, c) {
			return false
		}
	}
	return true
}
