// Command bridgectl administers the gateway's database: schema migrations,
// principal bootstrap and audit inspection.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
