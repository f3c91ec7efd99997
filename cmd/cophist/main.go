package main

import (
	"github.com/neilberkman/cophist/internal/interface/cli"
)

// Build-time variables set by ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func main() {
	cli.SetVersion(Version, Commit, Date)
	cli.Execute()
}
