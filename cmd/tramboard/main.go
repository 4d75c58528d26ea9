// Command tramboard renders the tram departure board once per invocation,
// or serves a live preview of it.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
