package pack

import (
	"github.com/memohai/sticker-export-bot/internal/sticker"
)

// outcome is the tagged result of one asset export.
type outcome struct {
	ref   sticker.AssetRef
	asset sticker.ExportedAsset
	err   error
}

// job accumulates outcomes of one pack export in arrival order.
// It is owned by the collecting goroutine and is not safe for concurrent use.
type job struct {
	id        string
	total     int
	completed int
	assets    []sticker.ExportedAsset
	sealed    bool
	failure   error
}

func newJob(id string, total int) *job {
	return &job{
		id:     id,
		total:  total,
		assets: make([]sticker.ExportedAsset, 0, total),
	}
}

// accept records o and reports whether the job counted it.
// A sealed job ignores every further outcome. The first failure seals the job.
func (j *job) accept(o outcome) bool {
	if j.sealed {
		return false
	}
	if o.err != nil {
		j.failure = o.err
		j.sealed = true
		return false
	}
	j.completed++
	j.assets = append(j.assets, o.asset)
	if j.completed == j.total {
		j.sealed = true
	}
	return true
}

func (j *job) done() bool {
	return j.sealed
}

// shouldReport reports whether progress at done of total is published.
func shouldReport(done, total int) bool {
	return done > 0 && (done%progressStep == 0 || done == total)
}
