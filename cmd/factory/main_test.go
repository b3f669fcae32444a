package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallConfig = `
modelShape: [4, 4, 8, 8, 8, 8, 16, 16, 32]
imageDepthRows: 16
imageDepthCols: 16
networkOutputSize: 4
optimizer: adam
initialLearningRate: 0.001
dropOutKeepRate: 1
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallConfig), 0o600))
	return path
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out, &out))
	assert.Contains(t, out.String(), version)
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(nil, &out, &out))
	assert.Contains(t, out.String(), "Commands:")

	require.Error(t, run([]string{"serve"}, &out, &out))
}

func TestRun_Models(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"models"}, &out, &out))
	assert.Contains(t, out.String(), "twin_cnn_8p1fp1f_sct")
}

func TestRun_Summary(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"summary", "-config", writeConfig(t)}, &out, &out))
	assert.Contains(t, out.String(), "merge3")
	assert.Contains(t, out.String(), "fc1")
}

func TestRun_Infer(t *testing.T) {
	var out, errOut bytes.Buffer
	require.NoError(t, run([]string{"infer", "-config", writeConfig(t), "-batch", "2", "-workers", "2"}, &out, &errOut))
	assert.Contains(t, out.String(), "output [2 4]")
}

func TestRun_Train(t *testing.T) {
	var out, errOut bytes.Buffer
	args := []string{"train", "-config", writeConfig(t), "-batch", "2", "-steps", "4", "-eval-every", "2"}
	require.NoError(t, run(args, &out, &errOut))
	assert.Contains(t, out.String(), "trained twin_cnn_8p1fp1f_sct for 4 steps")
	assert.Contains(t, errOut.String(), "msg=eval")
}

func TestRun_TrainThenInferFromCheckpoint(t *testing.T) {
	config := writeConfig(t)
	ckpt := filepath.Join(t.TempDir(), "model.born")

	var out, errOut bytes.Buffer
	require.NoError(t, run([]string{"train", "-config", config, "-batch", "2", "-steps", "2", "-eval-every", "0", "-save", ckpt}, &out, &errOut))
	assert.FileExists(t, ckpt)

	out.Reset()
	require.NoError(t, run([]string{"infer", "-config", config, "-batch", "1", "-checkpoint", ckpt}, &out, &errOut))
	assert.Contains(t, out.String(), "output [1 4]")

	require.Error(t, run([]string{"infer", "-config", config, "-checkpoint", filepath.Join(t.TempDir(), "none.born")}, &out, &errOut))
}

func TestRun_BadFlags(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, run([]string{"train", "-config", writeConfig(t), "-steps", "0"}, &out, &out))
	require.Error(t, run([]string{"infer", "-log-level", "loud"}, &out, &out))
	require.Error(t, run([]string{"summary", "-config", "/nonexistent.yaml"}, &out, &out))
}
