// Package version reports the build identity of the iterpipe binary.
//
// Version, commit, branch and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/iterpipe/version.Version=1.2.0 \
//	  -X github.com/kbukum/iterpipe/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Values left empty are filled from the VCS stamp the Go toolchain embeds.
package version
