package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerankd/rerankd/pkg/device"
)

func TestNewSelectsProvider(t *testing.T) {
	cpu := device.Device{Kind: device.KindCPU}

	s, err := New(Config{Provider: ProviderMock}, cpu)
	require.NoError(t, err)
	assert.IsType(t, &MockScorer{}, s)

	s, err = New(Config{Provider: ProviderJina, APIKey: "k"}, cpu)
	require.NoError(t, err)
	assert.IsType(t, &JinaScorer{}, s)

	s, err = New(Config{Provider: ProviderLLM, APIKey: "k"}, cpu)
	require.NoError(t, err)
	assert.IsType(t, &LLMScorer{}, s)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "tensorflow"}, device.Device{Kind: device.KindCPU})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scorer provider")
}
