//go:build ui

// Package ui holds the built-in dashboard. Build with -tags ui to compile
// it into the binary.
package ui

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// DistFS returns the embedded dashboard rooted at dist/.
func DistFS() (fs.FS, error) {
	return fs.Sub(distFS, "dist")
}
