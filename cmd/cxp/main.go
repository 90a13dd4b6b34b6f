// Command cxp builds, inspects, and serves content-addressed archives.
package main

import (
	"fmt"
	"os"

	"github.com/cxparchive/cxp/cmd/cxp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
