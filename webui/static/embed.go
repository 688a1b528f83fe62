// Package static embeds the studio's single page and its assets.
package static

import (
	"embed"
	"io/fs"
)

// StaticFS holds index.html, css/studio.css and js/studio.js.
//
//go:embed index.html css js
var StaticFS embed.FS

// GetFS returns the embedded filesystem.
func GetFS() fs.FS {
	return StaticFS
}
