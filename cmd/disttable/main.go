package main

import (
	"fmt"
	"os"

	"github.com/go-sif/disttable/cmd"
)

func main() {
	rc := cmd.NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := rc.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
