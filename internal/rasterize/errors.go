package rasterize

import "errors"

// ErrRenderFailed indicates page image rendering failed.
var ErrRenderFailed = errors.New("failed to render page images")
