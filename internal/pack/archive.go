package pack

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/memohai/sticker-export-bot/internal/sticker"
)

// entryMode is rwxr-xr-x, fixed for every entry.
const entryMode = 0o755

// writeArchive deflates assets into a ZIP in the given order, calling progress after each entry.
func writeArchive(assets []sticker.ExportedAsset, progress func(done int)) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, asset := range assets {
		header := &zip.FileHeader{
			Name:   asset.Filename,
			Method: zip.Deflate,
		}
		header.SetMode(entryMode)
		w, err := zw.CreateHeader(header)
		if err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("create entry %s: %w", asset.Filename, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("write entry %s: %w", asset.Filename, err)
		}
		if progress != nil {
			progress(i + 1)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
