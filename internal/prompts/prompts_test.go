package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	set := Default()

	assert.Contains(t, set.Conclusion.Instruction, "up-open")
	assert.Equal(t, 0.1, set.Predictor.Temperature)
	assert.Equal(t, 256, set.Predictor.MaxTokens)
	assert.Equal(t, "You are a helpful assistant.", set.SystemOrDefault("  "))
	assert.Equal(t, "custom", set.SystemOrDefault("custom"))

	hash, err := Hash(set)
	require.NoError(t, err)
	assert.Len(t, hash, 64)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	set, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), set)
}

func TestLoad_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `
meta:
  version: test
predictor:
  system: classify the news
  temperature: 0.3
conclusion:
  instruction: conclude
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", set.Meta.Version)
	assert.Equal(t, 0.3, set.Predictor.Temperature)
	assert.Equal(t, "conclude", set.Conclusion.Instruction)
}

func TestLoad_UnknownFieldFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `
predictor:
  system: x
  temprature: 0.3
conclusion:
  instruction: y
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingInstruction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("predictor:\n  system: x\n"), 0o600))

	_, err := Load(path)
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "conclusion.instruction", verr.Field)
}
