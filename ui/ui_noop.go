//go:build !ui

// Package ui holds the built-in dashboard. Build with -tags ui to compile
// it into the binary.
package ui

import "io/fs"

// DistFS returns nil when built without the ui tag. The server then serves
// no dashboard unless a static directory is configured.
func DistFS() (fs.FS, error) {
	return nil, nil
}
