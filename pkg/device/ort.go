package device

import (
	"os"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// EnsureORT initializes the shared ONNX Runtime environment exactly once for
// the process. libraryPath optionally points at the onnxruntime shared
// library; when empty the platform default lookup applies.
func EnsureORT(libraryPath string) error {
	ortInitOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ORTRuntime probes accelerator support through the ONNX Runtime CUDA
// execution provider. Probe results are cached for the life of the process.
type ORTRuntime struct {
	libraryPath string

	probeOnce sync.Once
	available bool
	count     int
}

// NewORTRuntime returns a Runtime backed by the ONNX Runtime installation at
// libraryPath (empty for the default lookup).
func NewORTRuntime(libraryPath string) *ORTRuntime {
	return &ORTRuntime{libraryPath: libraryPath}
}

func (r *ORTRuntime) probe() {
	r.probeOnce.Do(func() {
		if EnsureORT(r.libraryPath) != nil {
			return
		}
		opts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return
		}
		defer opts.Destroy()
		r.available = true
		r.count = visibleDeviceCount()
	})
}

// Available reports whether the CUDA execution provider can be created.
func (r *ORTRuntime) Available() bool {
	r.probe()
	return r.available
}

// Count returns the number of visible CUDA devices.
func (r *ORTRuntime) Count() int {
	r.probe()
	return r.count
}

// ReleaseCache returns cached memory to the allocator. The ONNX runtime
// frees device arenas when sessions are destroyed, so on the Go side this
// reduces to a collection pass releasing any dropped host-pinned buffers.
func (r *ORTRuntime) ReleaseCache(int) error {
	GC()
	return nil
}

// visibleDeviceCount derives the device count from CUDA_VISIBLE_DEVICES,
// defaulting to a single device when the variable is unset.
func visibleDeviceCount() int {
	v := os.Getenv("CUDA_VISIBLE_DEVICES")
	if v == "" {
		return 1
	}
	// Entries are ordinals or GPU UUIDs; a negative ordinal hides all
	// subsequent devices, matching the CUDA runtime contract.
	count := 0
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil && n < 0 {
			break
		}
		count++
	}
	return count
}
