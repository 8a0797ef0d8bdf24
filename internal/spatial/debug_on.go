//go:build spatialdebug

package spatial

// Built with -tags spatialdebug, every Link verifies the finished tree.
const debugChecks = true
