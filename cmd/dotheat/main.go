// Command dotheat runs heatmap sessions and the remote counter service.
package main

import (
	"os"

	"github.com/roach88/dotheat/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
