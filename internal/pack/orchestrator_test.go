package pack

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/sticker-export-bot/internal/sticker"
)

type fakeExporter struct {
	fail     map[string]error
	gate     chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (f *fakeExporter) Export(_ context.Context, ref sticker.AssetRef) (sticker.ExportedAsset, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	if err, ok := f.fail[ref.UniqueID]; ok {
		return sticker.ExportedAsset{}, err
	}
	if f.gate != nil {
		<-f.gate
	}
	return sticker.ExportedAsset{Filename: ref.UniqueID + ".png", Data: []byte("png:" + ref.UniqueID)}, nil
}

type progressRecorder struct {
	mu     sync.Mutex
	events []Progress
	err    error
}

func (r *progressRecorder) sink(_ context.Context, p Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
	return r.err
}

func (r *progressRecorder) done(stage Stage) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, e := range r.events {
		if e.Stage == stage {
			out = append(out, e.Done)
		}
	}
	return out
}

func makePack(name string, n int) sticker.Pack {
	pk := sticker.Pack{Name: name, Title: name}
	for i := 1; i <= n; i++ {
		pk.Assets = append(pk.Assets, sticker.AssetRef{
			FileID:   fmt.Sprintf("file-%d", i),
			UniqueID: fmt.Sprintf("u%d", i),
			SetName:  name,
		})
	}
	return pk
}

func readZip(t *testing.T, data []byte) *zip.Reader {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return zr
}

func TestExportPackSevenStickers(t *testing.T) {
	t.Parallel()

	rec := &progressRecorder{}
	o := NewOrchestrator(nil, &fakeExporter{}, 0)

	archive, err := o.ExportPack(context.Background(), makePack("Animals", 7), rec.sink)
	require.NoError(t, err)
	assert.Equal(t, "stickers-Animals.zip", archive.Filename)
	assert.Equal(t, 7, archive.Entries)
	assert.Equal(t, []int{5, 7}, rec.done(StageExport))
	assert.Equal(t, []int{5, 7}, rec.done(StageArchive))

	zr := readZip(t, archive.Data)
	require.Len(t, zr.File, 7)
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
		assert.Equal(t, zip.Deflate, f.Method)
		assert.Equal(t, "-rwxr-xr-x", f.Mode().String())

		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "png:"+f.Name[:len(f.Name)-len(".png")], string(body))
	}
	assert.Len(t, names, 7, "entry names must be unique")
}

func TestExportPackProgressStrictlyIncreases(t *testing.T) {
	t.Parallel()

	rec := &progressRecorder{}
	o := NewOrchestrator(nil, &fakeExporter{}, 3)

	_, err := o.ExportPack(context.Background(), makePack("p", 12), rec.sink)
	require.NoError(t, err)

	got := rec.done(StageExport)
	assert.Equal(t, []int{5, 10, 12}, got)
	for _, e := range rec.events {
		assert.Equal(t, 12, e.Total)
	}
}

func TestExportPackFailsFast(t *testing.T) {
	t.Parallel()

	failure := sticker.NewAssetError(sticker.AssetRef{UniqueID: "u4"}, sticker.ErrDecode, errors.New("webp: invalid format"))
	exp := &fakeExporter{
		fail: map[string]error{"u4": failure},
		gate: make(chan struct{}),
	}
	defer close(exp.gate)
	rec := &progressRecorder{}
	o := NewOrchestrator(nil, exp, 0)

	done := make(chan error, 1)
	go func() {
		_, err := o.ExportPack(context.Background(), makePack("p", 9), rec.sink)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, failure)
		assert.ErrorIs(t, err, sticker.ErrDecode)
	case <-time.After(2 * time.Second):
		t.Fatalf("ExportPack must return on the first failure without waiting for in-flight exports")
	}
	assert.Empty(t, rec.done(StageArchive), "no archive on failure")
}

func TestExportPackFailureAfterSomeSuccesses(t *testing.T) {
	t.Parallel()

	exp := &fakeExporter{fail: map[string]error{"u7": errors.New("download failed")}}
	o := NewOrchestrator(nil, exp, 1)

	archive, err := o.ExportPack(context.Background(), makePack("p", 7), nil)
	require.Error(t, err)
	assert.Empty(t, archive.Data)
}

func TestExportPackSinkErrorsAreNotFatal(t *testing.T) {
	t.Parallel()

	rec := &progressRecorder{err: errors.New("Bad Request: message is not modified")}
	o := NewOrchestrator(nil, &fakeExporter{}, 0)

	archive, err := o.ExportPack(context.Background(), makePack("p", 5), rec.sink)
	require.NoError(t, err)
	assert.Equal(t, 5, archive.Entries)
	assert.Equal(t, []int{5}, rec.done(StageExport))
}

func TestExportPackEmpty(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(nil, &fakeExporter{}, 0)
	_, err := o.ExportPack(context.Background(), sticker.Pack{Name: "empty"}, nil)
	assert.ErrorIs(t, err, sticker.ErrInvalidRequest)
}

func TestExportPackDeduplicatesUniqueIDs(t *testing.T) {
	t.Parallel()

	pk := makePack("p", 3)
	pk.Assets = append(pk.Assets, pk.Assets[0])
	exp := &fakeExporter{}
	o := NewOrchestrator(nil, exp, 0)

	archive, err := o.ExportPack(context.Background(), pk, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, archive.Entries)
	assert.Equal(t, int32(3), exp.calls.Load())
}

func TestExportPackRespectsConcurrencyBound(t *testing.T) {
	t.Parallel()

	exp := &fakeExporter{gate: make(chan struct{})}
	o := NewOrchestrator(nil, exp, 2)

	done := make(chan error, 1)
	go func() {
		_, err := o.ExportPack(context.Background(), makePack("p", 10), nil)
		done <- err
	}()
	for i := 0; i < 10; i++ {
		exp.gate <- struct{}{}
	}
	require.NoError(t, <-done)
	assert.LessOrEqual(t, exp.maxSeen.Load(), int32(2))
}

func TestExportPackContextCanceled(t *testing.T) {
	t.Parallel()

	exp := &fakeExporter{gate: make(chan struct{})}
	defer close(exp.gate)
	ctx, cancel := context.WithCancel(context.Background())
	o := NewOrchestrator(nil, exp, 0)

	done := make(chan error, 1)
	go func() {
		_, err := o.ExportPack(ctx, makePack("p", 3), nil)
		done <- err
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestJobSealsOnFailure(t *testing.T) {
	t.Parallel()

	j := newJob("j", 3)
	assert.True(t, j.accept(outcome{asset: sticker.ExportedAsset{Filename: "a.png"}}))
	assert.False(t, j.accept(outcome{err: errors.New("boom")}))
	assert.True(t, j.done())
	assert.False(t, j.accept(outcome{asset: sticker.ExportedAsset{Filename: "b.png"}}), "sealed job accepts nothing")
	assert.Equal(t, 1, j.completed)
	assert.Len(t, j.assets, 1)
}

func TestJobSealsWhenComplete(t *testing.T) {
	t.Parallel()

	j := newJob("j", 2)
	j.accept(outcome{})
	j.accept(outcome{})
	assert.True(t, j.done())
	assert.False(t, j.accept(outcome{}))
	assert.Equal(t, 2, j.completed)
}

func TestShouldReport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		done, total int
		want        bool
	}{
		{0, 7, false},
		{1, 7, false},
		{5, 7, true},
		{6, 7, false},
		{7, 7, true},
		{10, 12, true},
		{3, 3, true},
	}
	for _, tt := range tests {
		if got := shouldReport(tt.done, tt.total); got != tt.want {
			t.Errorf("shouldReport(%d, %d) = %v, want %v", tt.done, tt.total, got, tt.want)
		}
	}
}
