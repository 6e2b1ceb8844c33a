// Command bazaar tracks crowd-reported item prices and serves them over
// HTTP.
package main

import "github.com/mesh-intelligence/bazaar/internal/cli"

func main() {
	cli.Execute()
}
