// Package bazaar is the public entry point of the bazaar market tracker.
package bazaar

// Version is the semantic version reported by the CLI.
const Version = "0.3.0"
