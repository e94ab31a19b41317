package version

// Version is the current release version. Overridden at build time via
// -ldflags "-X github.com/sveniu/ssh-scankeys/version.Version=...".
var Version = "0.3.0"
