package main

import (
	"fmt"
	"os"
)

var Version = "dev"

func main() {
	root, s := newRootCmd()
	if err := execute(root, s); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
