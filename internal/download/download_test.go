package download

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frostming/unearth/internal/link"
)

type fakeResponse struct {
	status int
	body   io.ReadCloser
}

func (r *fakeResponse) StatusCode() int     { return r.status }
func (r *fakeResponse) Body() io.ReadCloser { return r.body }

type fakeSession struct {
	status int
	body   []byte
}

func (s *fakeSession) Get(ctx context.Context, rawURL string, headers map[string]string) (Response, error) {
	return &fakeResponse{status: s.status, body: io.NopCloser(bytes.NewReader(s.body))}, nil
}

func TestDownload_RemoteSucceedsWithMatchingHash(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello world")
	d := New(&fakeSession{status: 200, body: content}, nil, nil)

	l := link.New("https://example.com/pkg-1.0.tar.gz#md5=5eb63bbbe01eeed093cb22bb8f5acdc3", "")
	path, err := d.Download(context.Background(), l, dir, nil)
	require.NoError(t, err)
	require.FileExists(t, path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestDownload_RemoteFailsOnHashMismatch(t *testing.T) {
	dir := t.TempDir()
	d := New(&fakeSession{status: 200, body: []byte("hello world")}, nil, nil)

	l := link.New("https://example.com/pkg-1.0.tar.gz#md5=00000000000000000000000000000000", "")
	_, err := d.Download(context.Background(), l, dir, nil)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "a failed download must not leave a partial file behind")
}

func TestDownload_RemoteFailsOnHTTPError(t *testing.T) {
	dir := t.TempDir()
	d := New(&fakeSession{status: 404}, nil, nil)

	l := link.New("https://example.com/pkg-1.0.tar.gz", "")
	_, err := d.Download(context.Background(), l, dir, nil)
	require.Error(t, err)
}

func TestDownload_LocalFileIsCopied(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "pkg-1.0.tar.gz")
	require.NoError(t, os.WriteFile(src, []byte("archive"), 0o644))

	destDir := t.TempDir()
	d := New(&fakeSession{}, nil, nil)

	u := url.URL{Scheme: "file", Path: src}
	l := link.New(u.String(), "")
	path, err := d.Download(context.Background(), l, destDir, nil)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "archive", string(got))
}

func TestDownload_LocalDirectoryIsLeftInPlace(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	d := New(&fakeSession{}, nil, nil)

	u := url.URL{Scheme: "file", Path: srcDir}
	l := link.New(u.String(), "")
	path, err := d.Download(context.Background(), l, destDir, nil)
	require.NoError(t, err)
	require.Equal(t, srcDir, path)
}

func TestMergeHashAllowList(t *testing.T) {
	merged := mergeHashAllowList(
		map[string][]string{"sha256": {"a"}},
		map[string]string{"sha256": "a", "md5": "b"},
	)
	require.ElementsMatch(t, []string{"a"}, merged["sha256"])
	require.ElementsMatch(t, []string{"b"}, merged["md5"])
}
