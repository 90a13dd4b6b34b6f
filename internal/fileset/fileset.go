// Package fileset holds the fixed text/image extension sets the scanner and
// container writer retain files by (spec GLOSSARY: Text extensions, Image
// extensions).
package fileset

import "strings"

var textExtensions = map[string]struct{}{
	"rs": {}, "ts": {}, "tsx": {}, "js": {}, "jsx": {}, "py": {}, "go": {},
	"java": {}, "c": {}, "cpp": {}, "h": {}, "hpp": {}, "cs": {}, "rb": {},
	"php": {}, "swift": {}, "kt": {}, "scala": {}, "r": {}, "sql": {},
	"sh": {}, "bash": {}, "zsh": {}, "ps1": {}, "bat": {}, "cmd": {},
	"json": {}, "yaml": {}, "yml": {}, "toml": {}, "xml": {}, "ini": {},
	"env": {}, "conf": {}, "config": {}, "md": {}, "mdx": {}, "txt": {},
	"rst": {}, "adoc": {}, "tex": {}, "html": {}, "htm": {}, "css": {},
	"scss": {}, "sass": {}, "less": {}, "vue": {}, "svelte": {}, "csv": {},
	"tsv": {},
}

var imageExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {}, "bmp": {},
	"tiff": {}, "tif": {},
}

// Ext returns the lowercase extension of name, without the leading dot.
func Ext(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// IsText reports whether ext is in the fixed text-extension set.
func IsText(ext string) bool {
	_, ok := textExtensions[ext]
	return ok
}

// IsImage reports whether ext is in the fixed image-extension set.
func IsImage(ext string) bool {
	_, ok := imageExtensions[ext]
	return ok
}
