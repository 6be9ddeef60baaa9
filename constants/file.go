package constants

import "strings"

// DocumentFormats lists the document formats the text extractor understands.
var DocumentFormats = []string{"PDF", "TXT"}

// AllowedExtensions holds the file extensions picked up by directory ingestion and the watcher.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
	"txt": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ContentTypeForExt returns the MIME type used when archiving a document.
func ContentTypeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return "application/pdf"
	case "txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
