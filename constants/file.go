package constants

import "strings"

// FileKind is the declared kind of a source document, used to pick an
// extraction chain.
type FileKind string

const (
	PDF      FileKind = "PDF"
	Image    FileKind = "IMAGE"
	Document FileKind = "DOCUMENT"
	Email    FileKind = "EMAIL"
)

// AllowedExtensions holds the default allowed file extensions for source
// document discovery.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
	"doc":  {},
	"docx": {},
	"xls":  {},
	"xlsx": {},
	"eml":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToKind maps a (normalized or raw) extension to a FileKind.
// Returns "" for unsupported extensions.
func MapExtToKind(ext string) FileKind {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "png", "jpg", "jpeg", "gif", "tif", "tiff", "bmp":
		return Image
	case "doc", "docx", "xls", "xlsx":
		return Document
	case "eml":
		return Email
	default:
		return ""
	}
}
