package config

// Version is the chatvault binary version.
// Set at build time via: -ldflags "-X github.com/chatvault/chatvault/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
