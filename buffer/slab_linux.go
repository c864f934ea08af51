// File: buffer/slab_linux.go
//go:build linux

// Package buffer: Linux slab allocation via anonymous mmap.
//
// Slabs at or above mmapThreshold are mapped outside the Go heap so the
// resident pool does not inflate GC scan work; 2 MiB and larger attempt
// hugepages first. Mapping failure falls back to the heap.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/flowport/api"
)

const (
	pageSize      = 4 << 10
	hugePageSize  = 2 << 20
	mmapThreshold = 64 << 10
)

func roundUp(n, to int) int {
	return ((n + to - 1) / to) * to
}

// allocSlab returns a slab of exactly size bytes plus the release hook
// for its mapping, nil when the slab lives on the heap.
func allocSlab(size int) ([]byte, func([]byte), error) {
	if size <= 0 {
		return nil, nil, api.ErrInvalidArgument
	}
	if size < mmapThreshold {
		return make([]byte, size), nil, nil
	}

	prot := unix.PROT_READ | unix.PROT_WRITE
	flags := unix.MAP_ANONYMOUS | unix.MAP_PRIVATE

	if size >= hugePageSize {
		length := roundUp(size, hugePageSize)
		data, err := unix.Mmap(-1, 0, length, prot, flags|unix.MAP_HUGETLB)
		if err == nil {
			return data[:size], munmapAll(data), nil
		}
	}

	length := roundUp(size, pageSize)
	data, err := unix.Mmap(-1, 0, length, prot, flags)
	if err != nil {
		// No mapping available; the heap still satisfies the request.
		return make([]byte, size), nil, nil
	}
	return data[:size], munmapAll(data), nil
}

// munmapAll unmaps the full mapping regardless of the slab window handed
// out over it.
func munmapAll(mapping []byte) func([]byte) {
	return func([]byte) {
		_ = unix.Munmap(mapping)
	}
}
