package utils

import (
	"mime"
	"path"
	"strings"
)

// DefaultContentType is used when nothing is known about a key.
const DefaultContentType = "application/octet-stream"

// DetectContentType guesses the MIME type of an object from the extension
// of its key.
func DetectContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	switch ext {
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".html", ".htm":
		return "text/html"
	case ".txt":
		return "text/plain"
	case ".css":
		return "text/css"
	case ".csv":
		return "text/csv"
	case ".js":
		return "application/javascript"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	case ".mp4":
		return "video/mp4"
	case "":
		return DefaultContentType
	}

	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return DefaultContentType
}
