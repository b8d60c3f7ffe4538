package assets

import "embed"

// WebFS holds the browser script and stylesheet served under /static/.
//
// NOTE: go:embed patterns must not use ".." and must be relative to this file.
//
//go:embed web/*
var WebFS embed.FS
