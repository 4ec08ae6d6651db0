package version

// Version is overridden at build time with
// -ldflags "-X diag-bundle/core/internal/version.Version=...".
var Version = "dev"
