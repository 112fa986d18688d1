// Package startup reads the service configuration from the environment and
// logs the sectioned startup summary: banner, system information,
// configuration, directory checks, transcoder availability and the HTTP
// routes that were registered.
//
// ReadConfig is side-effect free and is also used by the CLI. LoadConfig adds
// the banner and verifies that OUTPUT_DIR and DATABASE_DIR are writable.
//
// Build information (Version, Commit, BuildTime) is injected with -ldflags:
//
//	go build -ldflags "-X video-rewrite/internal/startup.Version=1.0.0"
package startup
