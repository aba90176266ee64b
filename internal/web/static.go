package web

import (
	"embed"
)

// staticFiles holds the embedded page, its stylesheet and script.
// The final binary includes all files under static/.
//
//go:embed static/*
var staticFiles embed.FS
