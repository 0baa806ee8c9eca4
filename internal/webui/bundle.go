// Package webui embeds the endpoint management UI and mounts it on a gin engine.
package webui

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed dist/*
var dist embed.FS

// Bundle is the embedded management UI.
type Bundle struct {
	Files     fs.FS           // dist root.
	Assets    http.FileSystem // dist/assets, served under /assets.
	IndexHTML []byte          // Single-page entry document.
}

// Load reads the embedded bundle.
func Load() (Bundle, error) {
	files, errSub := fs.Sub(dist, "dist")
	if errSub != nil {
		return Bundle{}, fmt.Errorf("webui: dist: %w", errSub)
	}
	assets, errAssets := fs.Sub(files, "assets")
	if errAssets != nil {
		return Bundle{}, fmt.Errorf("webui: assets: %w", errAssets)
	}
	index, errIndex := fs.ReadFile(files, "index.html")
	if errIndex != nil {
		return Bundle{}, fmt.Errorf("webui: index: %w", errIndex)
	}
	return Bundle{Files: files, Assets: http.FS(assets), IndexHTML: index}, nil
}
