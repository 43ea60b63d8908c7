// Package teashelf carries build information for the teashelf binary.
package teashelf

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/mesh-intelligence/teashelf/pkg/teashelf.Version=...".
var Version = "0.1.0-dev"
