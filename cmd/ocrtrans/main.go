package main

import (
	"context"
	"os"

	"github.com/nerdneilsfield/ocr-bilingual/internal/cli"
)

// Version information
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	os.Exit(cli.Execute(context.Background(), Version, Commit, BuildDate))
}
