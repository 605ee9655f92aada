package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, ext, want string
	}{
		{"sticker.webp", ".png", "sticker.png"},
		{"dir/anim.webm", ".gif", "dir/anim.gif"},
		{"noext", ".png", "noext.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outputPath(tt.input, tt.ext))
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "sticker-export-bot "))
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.bin")

	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(input, buf.Bytes(), 0o600))

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", filepath.Join(dir, "missing.toml"), "convert", input})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "image/png")

	data, err := os.ReadFile(filepath.Join(dir, "in.png"))
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), decoded.Bounds())
}

func TestConvertCommandUnsupported(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("just text"), 0o600))

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(dir, "missing.toml"), "convert", input})

	assert.Error(t, root.Execute())
}

func TestMigrateCommandRejectsUnknown(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.toml"), "migrate", "sideways"})
	assert.Error(t, root.Execute())
}
