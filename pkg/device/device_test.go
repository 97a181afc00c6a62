package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubRuntime struct {
	available bool
	count     int
	released  []int
}

func (s *stubRuntime) Available() bool { return s.available }
func (s *stubRuntime) Count() int      { return s.count }

func (s *stubRuntime) ReleaseCache(index int) error {
	s.released = append(s.released, index)
	return nil
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		rt       Runtime
		override int
		want     Device
	}{
		{
			name:     "nil runtime falls back to cpu",
			rt:       nil,
			override: 0,
			want:     Device{Kind: KindCPU},
		},
		{
			name:     "no accelerator falls back to cpu",
			rt:       &stubRuntime{available: false},
			override: -1,
			want:     Device{Kind: KindCPU},
		},
		{
			name:     "no accelerator ignores override",
			rt:       &stubRuntime{available: false},
			override: 3,
			want:     Device{Kind: KindCPU},
		},
		{
			name:     "unset override picks first accelerator",
			rt:       &stubRuntime{available: true, count: 2},
			override: -1,
			want:     Device{Kind: KindCUDA, Index: 0},
		},
		{
			name:     "in-range override is honored",
			rt:       &stubRuntime{available: true, count: 4},
			override: 2,
			want:     Device{Kind: KindCUDA, Index: 2},
		},
		{
			name:     "out-of-range override falls back to first accelerator",
			rt:       &stubRuntime{available: true, count: 2},
			override: 5,
			want:     Device{Kind: KindCUDA, Index: 0},
		},
		{
			name:     "override equal to count is out of range",
			rt:       &stubRuntime{available: true, count: 2},
			override: 2,
			want:     Device{Kind: KindCUDA, Index: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.rt, tt.override))
		})
	}
}

func TestDeviceString(t *testing.T) {
	assert.Equal(t, "cpu", Device{Kind: KindCPU}.String())
	assert.Equal(t, "cuda:0", Device{Kind: KindCUDA, Index: 0}.String())
	assert.Equal(t, "cuda:3", Device{Kind: KindCUDA, Index: 3}.String())
}

func TestDeviceAccelerated(t *testing.T) {
	assert.False(t, Device{Kind: KindCPU}.Accelerated())
	assert.True(t, Device{Kind: KindCUDA}.Accelerated())
}

func TestSnapshot(t *testing.T) {
	inv := Snapshot(&stubRuntime{available: true, count: 2})
	assert.True(t, inv.AcceleratorAvailable)
	assert.Equal(t, 2, inv.AcceleratorCount)
	assert.Greater(t, inv.AllocatedBytes, uint64(0))

	inv = Snapshot(NoopRuntime{})
	assert.False(t, inv.AcceleratorAvailable)
	assert.Equal(t, 0, inv.AcceleratorCount)

	inv = Snapshot(nil)
	assert.False(t, inv.AcceleratorAvailable)
}

func TestNoopRuntime(t *testing.T) {
	rt := NoopRuntime{}
	assert.False(t, rt.Available())
	assert.Equal(t, 0, rt.Count())
	assert.NoError(t, rt.ReleaseCache(0))
}
