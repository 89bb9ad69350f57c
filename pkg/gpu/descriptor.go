// Package gpu holds the CPU-side descriptors the renderer draws from, the
// Device interface that binds them to a rendering context, and the Cache that
// memoizes what has already been uploaded.
//
// Every descriptor receives a Handle when it is created and carries a
// Version that only ever increases. A Cache re-synchronizes a GPU object
// whenever the descriptor's Version differs from the one it last uploaded.
package gpu

import "sync/atomic"

// Handle identifies a descriptor for its whole lifetime. Handles are unique
// across every descriptor type, so they double as cache keys and as stable
// sort keys.
type Handle uint32

var lastHandle atomic.Uint32

func newHandle() Handle {
	return Handle(lastHandle.Add(1))
}

// Resource is implemented by every descriptor.
type Resource interface {
	Handle() Handle
	Version() uint64
}

// versioned is embedded by descriptors to provide Handle and Version.
type versioned struct {
	handle  Handle
	version uint64
}

func newVersioned() versioned {
	return versioned{handle: newHandle(), version: 1}
}

// Handle returns the descriptor's identity.
func (v *versioned) Handle() Handle { return v.handle }

// Version returns the current content version.
func (v *versioned) Version() uint64 { return v.version }

// touch marks the content as changed.
func (v *versioned) touch() { v.version++ }
