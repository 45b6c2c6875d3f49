// Package file provides file-based configuration persistence for RAPTOR
// settings using TOML. Settings live in a single raptor.toml within the
// host application's config directory.
package file
