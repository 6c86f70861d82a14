package attachment

import "strings"

// StorageKey derives the blob-store key for an attachment:
//
//	{namespace}/{caseID}/{attachmentID}/{filename}
//
// Namespacing by both case id and attachment id guarantees distinct
// attachments never collide on a key, even when two uploads in the same case
// share an identical sanitized filename. Keys are derived solely from their
// inputs, never reused, and never rewritten.
//
// The case id segment is passed through the filename sanitizer as well, so a
// hostile id cannot smuggle separators or traversal sequences into the key.
func StorageKey(namespace, caseID, attachmentID, filename string) string {
	return strings.Join([]string{
		namespace,
		SanitizeFilename(caseID),
		attachmentID,
		filename,
	}, "/")
}
