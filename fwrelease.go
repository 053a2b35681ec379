/*
Package fwrelease packages firmware build outputs into release bundles and
publishes them as GitHub releases.

A release is driven by firmware/releases.yaml in the project directory. It
names the releases, the targets each release ships, and the file groups that
make up the bundles:
  - Rogue: a Python package zip carrying config files and firmware images
  - CPSW: a source tarball rooted at <release>_project.yaml

# Usage

	fwrelease --project . --release MyRelease --build latest --version v1.2.3
	fwrelease --project . --version v1.2.3 --prev v1.2.2 --push
	fwrelease check --project .
	fwrelease list --project .
*/
package fwrelease

// Version is the current version of fwrelease
const Version = "1.0.0"

// BuildDate is set at build time
var BuildDate string

// GitCommit is set at build time
var GitCommit string
