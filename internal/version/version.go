// Package version carries build information injected with -ldflags "-X".
package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Generator is the value recorded in archive manifests and sidecars.
func Generator() string {
	return "shopbk " + Version
}
