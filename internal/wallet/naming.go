package wallet

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// DefaultExtension is used when a caller does not know the file type,
// which is the common case for camera captures.
const DefaultExtension = ".jpg"

// NameGenerator produces file names for documents placed in the file store.
type NameGenerator interface {
	Name(ext string) string
}

// UniqueNamer builds names from a nanosecond timestamp and a random numeric
// suffix. Uniqueness is probabilistic: the index is never consulted.
type UniqueNamer struct {
	clock Clock
}

// NewUniqueNamer returns a UniqueNamer reading time from clock.
func NewUniqueNamer(clock Clock) *UniqueNamer {
	return &UniqueNamer{clock: clock}
}

// Name returns "<unix-nanos>_<6 digits><ext>".
func (n *UniqueNamer) Name(ext string) string {
	return fmt.Sprintf("%d_%06d%s", n.clock.Now().UnixNano(), rand.IntN(1_000_000), NormalizeExtension(ext))
}

// NormalizeExtension lowercases ext and ensures a leading dot.
// An empty extension becomes DefaultExtension.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
