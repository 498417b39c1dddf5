// promwrite writes metrics to a Prometheus remote-write endpoint, either
// from a file in the text exposition format or as a single metric given
// on the command line.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
