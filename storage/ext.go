package storage

import (
	"path/filepath"
	"strings"
)

var htmlExts = map[string]bool{".html": true, ".htm": true}

var binaryExts = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".svg": true, ".ico": true, ".zip": true, ".gz": true, ".tgz": true, ".tar": true,
	".7z": true, ".mp3": true, ".mp4": true, ".webm": true, ".wav": true, ".doc": true,
	".docx": true, ".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true, ".odt": true,
	".epub": true, ".txt": true, ".csv": true, ".json": true, ".xml": true,
}

// IsHTMLName reports whether name has an .html or .htm extension.
func IsHTMLName(name string) bool {
	return htmlExts[strings.ToLower(filepath.Ext(name))]
}

// IsBinaryName reports whether name looks like a non-HTML resource.
func IsBinaryName(name string) bool {
	return binaryExts[strings.ToLower(filepath.Ext(name))]
}

// IsPDFName reports whether name has a .pdf extension.
func IsPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
