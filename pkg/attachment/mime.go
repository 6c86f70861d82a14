package attachment

import "strings"

// MIMEOctetStream is the fallback content type recorded when an uploader
// declares none.
const MIMEOctetStream = "application/octet-stream"

// DefaultAllowedExtensions returns the production extension allow-list:
// common document, spreadsheet, presentation, image, and archive formats.
func DefaultAllowedExtensions() []string {
	return []string{
		"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx",
		"txt", "csv", "rtf",
		"jpg", "jpeg", "png", "gif", "webp",
		"zip",
	}
}

// DefaultAllowedMIME returns the per-extension declared-MIME allow-map.
// Browsers are inconsistent about declared types (notably for CSV and ZIP),
// so several extensions accept more than one. application/octet-stream is
// accepted everywhere for clients that cannot sniff content.
func DefaultAllowedMIME() map[string][]string {
	return map[string][]string{
		"pdf":  {"application/pdf"},
		"doc":  {"application/msword"},
		"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		"xls":  {"application/vnd.ms-excel"},
		"xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		"ppt":  {"application/vnd.ms-powerpoint"},
		"pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation"},
		"txt":  {"text/plain"},
		"csv":  {"text/csv", "application/vnd.ms-excel", "text/plain"},
		"rtf":  {"application/rtf", "text/rtf"},
		"jpg":  {"image/jpeg"},
		"jpeg": {"image/jpeg"},
		"png":  {"image/png"},
		"gif":  {"image/gif"},
		"webp": {"image/webp"},
		"zip":  {"application/zip", "application/x-zip-compressed"},
	}
}

// normalizeMIME extracts the base MIME type, removing parameters like charset.
// Returns the lowercase MIME type.
func normalizeMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.TrimSpace(strings.ToLower(mimeType))
}

// mimeAllowed reports whether the declared MIME type is a member of the
// allowed set. application/octet-stream always passes.
func mimeAllowed(declared string, allowed []string) bool {
	declared = normalizeMIME(declared)
	if declared == MIMEOctetStream {
		return true
	}
	for _, m := range allowed {
		if declared == m {
			return true
		}
	}
	return false
}
