package config

// Version is the edgeproxy binary version.
// Set at build time via: -ldflags "-X github.com/coreproxy/edgeproxy/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
