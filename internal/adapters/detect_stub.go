//go:build !linux
// +build !linux

package adapters

import (
	"fmt"

	"github.com/shingonati0n/xivomega/internal/hostnet"
)

// Detect is a stub for non-Linux platforms. Only Linux is supported at
// runtime; this exists so the package compiles everywhere for tests.
func Detect(nl hostnet.Netlinker) ([]Candidate, error) {
	return nil, fmt.Errorf("adapter detection not supported on this platform")
}
