//go:build !spatialdebug

package spatial

const debugChecks = false
