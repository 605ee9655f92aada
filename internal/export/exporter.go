// Package export fetches a single sticker and converts it.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/memohai/sticker-export-bot/internal/convert"
	"github.com/memohai/sticker-export-bot/internal/metrics"
	"github.com/memohai/sticker-export-bot/internal/sticker"
)

// DefaultMaxAssetBytes bounds a single download. Telegram caps bot downloads at 20 MiB.
const DefaultMaxAssetBytes int64 = 20 << 20

// RemoteFile is the remote descriptor of a sticker file.
type RemoteFile struct {
	Path string
	Size int64
}

// FileSource resolves and downloads remote files.
type FileSource interface {
	FileInfo(ctx context.Context, fileID string) (RemoteFile, error)
	Download(ctx context.Context, path string) ([]byte, error)
}

// Converter converts detected bytes.
type Converter interface {
	Convert(ctx context.Context, data []byte, det sticker.Detection) (sticker.Converted, error)
}

// Options tunes an Exporter.
type Options struct {
	// LocalFiles enables reading absolute file paths directly from disk,
	// for deployments that share storage with a local Bot API server.
	LocalFiles    bool
	MaxAssetBytes int64
}

// Exporter runs fetch, detect and convert for one sticker. It never retries.
type Exporter struct {
	source    FileSource
	converter Converter
	opts      Options
	logger    *slog.Logger
}

// NewExporter creates an exporter.
func NewExporter(log *slog.Logger, source FileSource, converter Converter, opts Options) *Exporter {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxAssetBytes <= 0 {
		opts.MaxAssetBytes = DefaultMaxAssetBytes
	}
	return &Exporter{
		source:    source,
		converter: converter,
		opts:      opts,
		logger:    log.With(slog.String("service", "export")),
	}
}

// Export produces the named, converted sticker or an *sticker.AssetError.
func (e *Exporter) Export(ctx context.Context, ref sticker.AssetRef) (sticker.ExportedAsset, error) {
	started := time.Now()
	asset, kind, err := e.export(ctx, ref)
	metrics.ObserveAssetExport(kind, err, time.Since(started))
	if err != nil {
		e.logger.Debug("export failed",
			slog.String("unique_id", ref.UniqueID),
			slog.Any("error", err),
		)
		return sticker.ExportedAsset{}, err
	}
	return asset, nil
}

func (e *Exporter) export(ctx context.Context, ref sticker.AssetRef) (sticker.ExportedAsset, sticker.Kind, error) {
	if strings.TrimSpace(ref.FileID) == "" || strings.TrimSpace(ref.UniqueID) == "" {
		return sticker.ExportedAsset{}, sticker.KindUnrecognized,
			sticker.NewAssetError(ref, sticker.ErrInvalidRequest, errors.New("file id and unique id are required"))
	}
	file, err := e.source.FileInfo(ctx, ref.FileID)
	if err != nil {
		return sticker.ExportedAsset{}, sticker.KindUnrecognized, sticker.NewAssetError(ref, sticker.ErrMetadataFetch, err)
	}
	data, err := e.fetch(ctx, ref, file)
	if err != nil {
		return sticker.ExportedAsset{}, sticker.KindUnrecognized, err
	}

	det := convert.Detect(data)
	out, err := e.converter.Convert(ctx, data, det)
	if err != nil {
		return sticker.ExportedAsset{}, det.Kind, sticker.NewAssetError(ref, conversionKind(err), err)
	}
	return sticker.ExportedAsset{
		Filename: ref.UniqueID + out.Ext,
		Data:     out.Data,
	}, det.Kind, nil
}

func (e *Exporter) fetch(ctx context.Context, ref sticker.AssetRef, file RemoteFile) ([]byte, error) {
	if file.Size > e.opts.MaxAssetBytes {
		return nil, sticker.NewAssetError(ref, sticker.ErrDownload,
			fmt.Errorf("file is %d bytes, limit is %d", file.Size, e.opts.MaxAssetBytes))
	}
	if e.opts.LocalFiles && filepath.IsAbs(file.Path) {
		data, err := readLocal(file.Path, e.opts.MaxAssetBytes)
		if err != nil {
			return nil, sticker.NewAssetError(ref, sticker.ErrLocalRead, err)
		}
		return data, nil
	}
	if strings.TrimSpace(file.Path) == "" {
		return nil, sticker.NewAssetError(ref, sticker.ErrDownload, errors.New("remote file has no path"))
	}
	data, err := e.source.Download(ctx, file.Path)
	if err != nil {
		return nil, sticker.NewAssetError(ref, sticker.ErrDownload, err)
	}
	if int64(len(data)) > e.opts.MaxAssetBytes {
		return nil, sticker.NewAssetError(ref, sticker.ErrDownload,
			fmt.Errorf("download exceeds %d bytes", e.opts.MaxAssetBytes))
	}
	return data, nil
}

func readLocal(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxBytes)
	}
	return data, nil
}

var conversionKinds = []error{
	sticker.ErrUnsupportedFormat,
	sticker.ErrDecode,
	sticker.ErrEncode,
	sticker.ErrTranscode,
}

// conversionKind picks the taxonomy sentinel of a converter failure.
// Converters outside this module may return bare errors; those count as decode failures.
func conversionKind(err error) error {
	for _, kind := range conversionKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return sticker.ErrDecode
}
