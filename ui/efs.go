// Package ui embeds the page templates and static assets.
package ui

import "embed"

//go:embed "static" "templates"
var Files embed.FS
