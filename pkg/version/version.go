// Package version holds the build version, overridden at link time with
// -ldflags "-X flightlogger/pkg/version.Version=...".
package version

var Version = "v0.3.1"
