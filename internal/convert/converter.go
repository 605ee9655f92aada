// Package convert turns downloaded sticker bytes into PNG or GIF.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/memohai/sticker-export-bot/internal/sticker"
)

const (
	ExtPNG = ".png"
	ExtGIF = ".gif"

	mimeWebM = "video/webm"
)

// Converter converts a single asset. It keeps no state between calls.
type Converter struct {
	transcoder Transcoder
	tempDir    string
	logger     *slog.Logger
}

// NewConverter creates a converter. tempDir may be empty to use the system default.
func NewConverter(log *slog.Logger, transcoder Transcoder, tempDir string) *Converter {
	if log == nil {
		log = slog.Default()
	}
	return &Converter{
		transcoder: transcoder,
		tempDir:    tempDir,
		logger:     log.With(slog.String("service", "convert")),
	}
}

// ExtensionFor returns the output extension for kind, or "" when kind cannot be exported.
func ExtensionFor(kind sticker.Kind) string {
	switch kind {
	case sticker.KindImage:
		return ExtPNG
	case sticker.KindVideo:
		return ExtGIF
	default:
		return ""
	}
}

// Convert transforms data according to det.
func (c *Converter) Convert(ctx context.Context, data []byte, det sticker.Detection) (sticker.Converted, error) {
	switch det.Kind {
	case sticker.KindImage:
		out, err := ToPNG(data)
		if err != nil {
			return sticker.Converted{}, err
		}
		return sticker.Converted{Ext: ExtPNG, Data: out}, nil
	case sticker.KindVideo:
		if det.MIME != mimeWebM {
			return sticker.Converted{}, &sticker.UnsupportedFormatError{MIME: det.MIME}
		}
		out, err := c.webmToGIF(ctx, data)
		if err != nil {
			return sticker.Converted{}, err
		}
		return sticker.Converted{Ext: ExtGIF, Data: out}, nil
	case sticker.KindUnrecognized:
		return sticker.Converted{}, &sticker.UnsupportedFormatError{MIME: det.MIME}
	default:
		return sticker.Converted{}, fmt.Errorf("unknown kind %d: %w", det.Kind, sticker.ErrUnsupportedFormat)
	}
}

// ToPNG decodes any registered image format and re-encodes it losslessly as PNG.
func ToPNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sticker.ErrDecode, err)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %w", sticker.ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func (c *Converter) webmToGIF(ctx context.Context, data []byte) ([]byte, error) {
	if c.transcoder == nil {
		return nil, &sticker.TranscodeError{Err: fmt.Errorf("no transcoder configured")}
	}
	dir, err := os.MkdirTemp(c.tempDir, "sticker-transcode-*")
	if err != nil {
		return nil, &sticker.TranscodeError{Err: fmt.Errorf("create temp dir: %w", err)}
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("remove temp dir failed", slog.String("dir", dir), slog.Any("error", err))
		}
	}()

	input := filepath.Join(dir, "input.webm")
	output := filepath.Join(dir, "output.gif")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, &sticker.TranscodeError{Err: fmt.Errorf("write input: %w", err)}
	}
	if err := c.transcoder.Transcode(ctx, input, output); err != nil {
		return nil, err
	}
	out, err := os.ReadFile(output)
	if err != nil {
		return nil, &sticker.TranscodeError{Err: fmt.Errorf("read output: %w", err)}
	}
	return out, nil
}
