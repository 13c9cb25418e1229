// Package webui exposes the embedded dashboard filesystem.
// It lives at the module root so go:embed can reach the sibling web/
// directory; internal/server/embed.go serves it.
package webui

import "embed"

// FS is the embedded web directory tree containing the dashboard.
//
//go:embed web
var FS embed.FS
