//go:build tools
// +build tools

// Package tools pins code generators invoked through go:generate so that
// go.mod and go.sum keep tracking them on a fresh checkout.
package chat_service

import (
	_ "go.uber.org/mock/mockgen"
)
