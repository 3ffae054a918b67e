// Package certmaker provides embedded assets for the certmaker CLI.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML], which `certmaker init` writes into a new workspace.
package certmaker

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, generated by
// cmd/genconfig and embedded at build time.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
