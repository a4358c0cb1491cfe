// Package platform describes the host the CLI runs on. A ToolSet is chosen
// once at startup from runtime.GOOS and reports the platform and
// architecture names used by environment engines, and the package also
// carries the small filesystem helpers that differ between Unix and Windows.
package platform
