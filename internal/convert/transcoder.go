package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/memohai/sticker-export-bot/internal/sticker"
)

// Fixed GIF output parameters.
const (
	GIFFrameRate = 30
	GIFWidth     = 320
)

// Transcoder converts the video at inputPath into an animated GIF at outputPath.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string) error
}

// FFmpegTranscoder runs the ffmpeg binary.
type FFmpegTranscoder struct {
	Binary string
}

// NewFFmpegTranscoder returns a transcoder using binary, or "ffmpeg" from PATH.
func NewFFmpegTranscoder(binary string) *FFmpegTranscoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegTranscoder{Binary: binary}
}

// FilterGraph is the video filter applied to every transcode: resample, then scale keeping aspect ratio.
func FilterGraph() string {
	return fmt.Sprintf("fps=%d,scale=%d:-1:flags=lanczos", GIFFrameRate, GIFWidth)
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, t.Binary,
		"-hide_banner",
		"-loglevel", "error",
		"-protocol_whitelist", "file",
		"-y",
		"-i", inputPath,
		"-vf", FilterGraph(),
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &sticker.TranscodeError{Output: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

// Check verifies the binary can be executed.
func (t *FFmpegTranscoder) Check(ctx context.Context) error {
	return exec.CommandContext(ctx, t.Binary, "-version").Run()
}
