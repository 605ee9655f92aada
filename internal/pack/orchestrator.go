// Package pack exports whole sticker packs into a single ZIP archive.
package pack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/sticker-export-bot/internal/metrics"
	"github.com/memohai/sticker-export-bot/internal/sticker"
)

const progressStep = 5

// Stage distinguishes the two classes of progress notifications.
type Stage string

const (
	StageExport  Stage = "export"
	StageArchive Stage = "archive"
)

// Progress is one progress notification.
type Progress struct {
	Stage Stage
	Done  int
	Total int
}

// ProgressSink receives progress notifications. Errors are logged and otherwise ignored.
type ProgressSink func(ctx context.Context, p Progress) error

// Exporter exports one sticker.
type Exporter interface {
	Export(ctx context.Context, ref sticker.AssetRef) (sticker.ExportedAsset, error)
}

// Archive is the result of a successful pack export.
type Archive struct {
	Filename string
	Data     []byte
	Entries  int
}

// Orchestrator fans a pack out to the exporter and aggregates the results.
type Orchestrator struct {
	exporter    Exporter
	concurrency int
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator. concurrency <= 0 runs every asset of a pack at once.
func NewOrchestrator(log *slog.Logger, exporter Exporter, concurrency int) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		exporter:    exporter,
		concurrency: concurrency,
		logger:      log.With(slog.String("service", "pack")),
	}
}

// ArchiveName returns the archive file name for a pack.
func ArchiveName(packName string) string {
	return "stickers-" + packName + ".zip"
}

// ExportPack exports every asset of pk and bundles them into a ZIP archive.
// The first failing asset aborts the export and its error is returned; assets still in
// flight finish in the background and their results are dropped.
func (o *Orchestrator) ExportPack(ctx context.Context, pk sticker.Pack, sink ProgressSink) (Archive, error) {
	refs := dedupe(pk.Assets)
	if len(refs) == 0 {
		return Archive{}, fmt.Errorf("%w: sticker pack %q has no stickers", sticker.ErrInvalidRequest, pk.Name)
	}

	j := newJob(uuid.NewString(), len(refs))
	log := o.logger.With(
		slog.String("job_id", j.id),
		slog.String("pack", pk.Name),
		slog.Int("total", j.total),
	)
	started := time.Now()
	metrics.PackExportsActive.Inc()
	defer metrics.PackExportsActive.Dec()
	log.Info("pack export start")

	archive, err := o.run(ctx, log, j, pk, refs, sink)
	metrics.PackExportsTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		log.Warn("pack export failed",
			slog.Int("completed", j.completed),
			slog.Duration("elapsed", time.Since(started)),
			slog.Any("error", err),
		)
		return Archive{}, err
	}
	log.Info("pack export done",
		slog.Int("bytes", len(archive.Data)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return archive, nil
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, j *job, pk sticker.Pack, refs []sticker.AssetRef, sink ProgressSink) (Archive, error) {
	// Buffered to the pack size so late exports never block once the job is sealed.
	results := make(chan outcome, len(refs))
	o.fanOut(ctx, refs, results)

	for !j.done() {
		var res outcome
		select {
		case res = <-results:
		case <-ctx.Done():
			return Archive{}, ctx.Err()
		}
		if !j.accept(res) {
			continue
		}
		if shouldReport(j.completed, j.total) {
			notify(ctx, log, sink, Progress{Stage: StageExport, Done: j.completed, Total: j.total})
		}
	}
	if j.failure != nil {
		return Archive{}, j.failure
	}

	data, err := writeArchive(j.assets, func(done int) {
		if shouldReport(done, j.total) {
			notify(ctx, log, sink, Progress{Stage: StageArchive, Done: done, Total: j.total})
		}
	})
	if err != nil {
		return Archive{}, fmt.Errorf("%w: %w", sticker.ErrArchive, err)
	}
	return Archive{
		Filename: ArchiveName(pk.Name),
		Data:     data,
		Entries:  len(j.assets),
	}, nil
}

func (o *Orchestrator) fanOut(ctx context.Context, refs []sticker.AssetRef, results chan<- outcome) {
	var sem chan struct{}
	if o.concurrency > 0 && o.concurrency < len(refs) {
		sem = make(chan struct{}, o.concurrency)
	}
	for _, ref := range refs {
		ref := ref
		go func() {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			asset, err := o.exporter.Export(ctx, ref)
			results <- outcome{ref: ref, asset: asset, err: err}
		}()
	}
}

func notify(ctx context.Context, log *slog.Logger, sink ProgressSink, p Progress) {
	if sink == nil {
		return
	}
	if err := sink(ctx, p); err != nil {
		log.Warn("progress notification failed",
			slog.String("stage", string(p.Stage)),
			slog.Int("done", p.Done),
			slog.Any("error", err),
		)
	}
}

// dedupe drops repeated unique ids so archive entry names stay unique.
func dedupe(refs []sticker.AssetRef) []sticker.AssetRef {
	seen := make(map[string]struct{}, len(refs))
	out := make([]sticker.AssetRef, 0, len(refs))
	for _, ref := range refs {
		key := strings.TrimSpace(ref.UniqueID)
		if _, ok := seen[key]; ok && key != "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ref)
	}
	return out
}
