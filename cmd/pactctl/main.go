// Command pactctl runs maintenance tasks against a pactflow database.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "pactctl:", err)
		os.Exit(1)
	}
}
