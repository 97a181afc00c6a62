// Package device resolves which compute device the scoring model binds to.
//
// Selection happens once at handle-creation time: no accelerator means CPU,
// an in-range configured index means that accelerator, anything else means
// accelerator 0.
package device

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Kind identifies a class of compute device.
type Kind string

const (
	// KindCPU is the general-purpose processor.
	KindCPU Kind = "cpu"
	// KindCUDA is an NVIDIA accelerator addressed by index.
	KindCUDA Kind = "cuda"
)

// Device describes the compute device a model handle is bound to.
type Device struct {
	Kind  Kind `json:"kind"`
	Index int  `json:"index"`
}

// Accelerated reports whether the device is an accelerator.
func (d Device) Accelerated() bool {
	return d.Kind == KindCUDA
}

func (d Device) String() string {
	if d.Kind == KindCPU {
		return string(KindCPU)
	}
	return fmt.Sprintf("%s:%d", d.Kind, d.Index)
}

// Runtime abstracts the accelerator runtime so the selection policy and the
// memory-reclamation path can be exercised without hardware.
type Runtime interface {
	// Available reports whether at least one accelerator can be used.
	Available() bool

	// Count returns the number of visible accelerators.
	Count() int

	// ReleaseCache asks the runtime to return cached memory for the given
	// accelerator index to its allocator. Best effort.
	ReleaseCache(index int) error
}

// Resolve applies the device-selection policy against the given runtime.
// override is the configured accelerator index, negative when unset.
func Resolve(rt Runtime, override int) Device {
	if rt == nil || !rt.Available() {
		return Device{Kind: KindCPU}
	}
	if override >= 0 && override < rt.Count() {
		return Device{Kind: KindCUDA, Index: override}
	}
	return Device{Kind: KindCUDA, Index: 0}
}

// Inventory is a read-only snapshot of the device environment, reported by
// the health endpoint.
type Inventory struct {
	AcceleratorAvailable bool   `json:"accelerator_available"`
	AcceleratorCount     int    `json:"accelerator_count"`
	AllocatedBytes       uint64 `json:"allocated_bytes"`
}

// Snapshot captures the current inventory for rt. AllocatedBytes reports the
// process heap since the ONNX runtime does not expose per-device allocator
// statistics.
func Snapshot(rt Runtime) Inventory {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	inv := Inventory{AllocatedBytes: ms.HeapAlloc}
	if rt != nil && rt.Available() {
		inv.AcceleratorAvailable = true
		inv.AcceleratorCount = rt.Count()
	}
	return inv
}

// NoopRuntime is a Runtime with no accelerators. Used on CPU-only hosts and
// in tests.
type NoopRuntime struct{}

func (NoopRuntime) Available() bool        { return false }
func (NoopRuntime) Count() int             { return 0 }
func (NoopRuntime) ReleaseCache(int) error { return nil }

// GC requests a garbage-collection pass and returns freed pages to the OS.
// Called after handle release so a dropped model's memory does not linger.
func GC() {
	runtime.GC()
	debug.FreeOSMemory()
}
