//go:build tools
// +build tools

// Package groupmeet declares tool dependencies so that `go generate`
// (mockgen) resolves against go.mod on a fresh checkout.
package groupmeet

import (
	_ "go.uber.org/mock/mockgen"
)
