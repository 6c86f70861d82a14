package attachment

import (
	"regexp"
	"strings"
)

// maxFilenameLength bounds sanitized filenames so storage keys stay well
// under object-store key limits.
const maxFilenameLength = 100

var (
	// unsafeFilenameChars matches everything outside the storage-safe alphabet.
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	underscoreRuns      = regexp.MustCompile(`_+`)
)

// SanitizeFilename normalizes an arbitrary filename into a storage-safe token:
// characters outside [A-Za-z0-9._-] become underscores, runs of underscores
// collapse to one, leading and trailing underscores are trimmed, and the
// result is truncated to 100 characters.
//
// The function is deterministic and idempotent: sanitizing an
// already-sanitized name is a no-op.
func SanitizeFilename(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(name, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxFilenameLength {
		// The alphabet is ASCII at this point, so byte slicing is safe.
		// Trim again in case truncation exposed a trailing underscore,
		// which would break idempotence.
		s = strings.TrimRight(s[:maxFilenameLength], "_")
	}
	return s
}

// fileExt returns the lowercase extension of a filename without the dot,
// or "" when there is none.
func fileExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
