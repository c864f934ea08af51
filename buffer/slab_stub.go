// File: buffer/slab_stub.go
//go:build !linux

// Package buffer: portable slab allocation, plain heap slices.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import "github.com/momentics/flowport/api"

func allocSlab(size int) ([]byte, func([]byte), error) {
	if size <= 0 {
		return nil, nil, api.ErrInvalidArgument
	}
	return make([]byte, size), nil, nil
}
