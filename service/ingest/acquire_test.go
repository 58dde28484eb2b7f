package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls  int
	result *FetchResult
	errs   []error
}

func (f *fakeFetcher) Fetch(ctx context.Context, sourceURL, destDir string) (*FetchResult, error) {
	f.calls++
	if len(f.errs) >= f.calls && f.errs[f.calls-1] != nil {
		return nil, f.errs[f.calls-1]
	}
	return f.result, nil
}

func TestStableID(t *testing.T) {
	assert.Equal(t, "BV1xx411c7mD", StableID("https://www.bilibili.com/video/BV1xx411c7mD?p=1"))
	assert.Equal(t, "", StableID("https://example.com/watch?v=abc"))
}

func TestResolve_CacheHitSkipsFetcher(t *testing.T) {
	dir := t.TempDir()
	cached := filepath.Join(dir, "BV1xx411c7mD.m4a")
	require.NoError(t, os.WriteFile(cached, []byte("audio"), 0o644))

	fetcher := &fakeFetcher{}
	a := NewAcquisition(dir, fetcher)

	resolved, err := a.Resolve(context.Background(), "https://www.bilibili.com/video/BV1xx411c7mD")
	require.NoError(t, err)
	assert.True(t, resolved.CacheHit)
	assert.Equal(t, cached, resolved.AudioPath)
	assert.Equal(t, 0, fetcher.calls)
}

func TestResolve_KnownIDWithoutCacheAnchorsExpectedPath(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{}
	a := NewAcquisition(dir, fetcher)

	resolved, err := a.Resolve(context.Background(), "https://www.bilibili.com/video/BV1yy411c7mD")
	require.NoError(t, err)
	assert.True(t, resolved.MediaMissing)
	assert.Equal(t, filepath.Join(dir, "BV1yy411c7mD.m4a"), resolved.AudioPath)
	assert.Equal(t, 0, fetcher.calls)
}

func TestResolve_UnknownSourceFetches(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{
		result: &FetchResult{
			Title:     "某期播客",
			AudioPath: filepath.Join(dir, "abc.m4a"),
		},
	}
	a := NewAcquisition(dir, fetcher)

	resolved, err := a.Resolve(context.Background(), "https://podcasts.example.com/episode/42")
	require.NoError(t, err)
	assert.Equal(t, "某期播客", resolved.Title)
	assert.False(t, resolved.CacheHit)
	assert.Equal(t, 1, fetcher.calls)
}

func TestResolve_RetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{
		result: &FetchResult{Title: "标题", AudioPath: filepath.Join(dir, "x.m4a")},
		errs:   []error{errors.New("temporary failure")},
	}
	a := NewAcquisition(dir, fetcher)

	resolved, err := a.Resolve(context.Background(), "https://podcasts.example.com/episode/1")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, "标题", resolved.Title)
}

func TestResolve_ExhaustedRetriesFail(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{
		errs: []error{errors.New("down"), errors.New("still down")},
	}
	a := NewAcquisition(dir, fetcher)

	_, err := a.Resolve(context.Background(), "https://podcasts.example.com/episode/1")
	require.Error(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestResolve_EmptyTitleDefaults(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{
		result: &FetchResult{AudioPath: filepath.Join(dir, "x.m4a")},
	}
	a := NewAcquisition(dir, fetcher)

	resolved, err := a.Resolve(context.Background(), "https://podcasts.example.com/episode/1")
	require.NoError(t, err)
	assert.Equal(t, "Untitled", resolved.Title)
}
