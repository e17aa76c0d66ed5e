package download

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/frostming/unearth/internal/finderr"
	"github.com/frostming/unearth/internal/link"
	"github.com/frostming/unearth/internal/log"
)

// Session is the subset of fetch.Session this package depends on. It is
// defined locally so that this package does not import internal/fetch.
type Session interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) (Response, error)
}

// Response mirrors fetch.Response's streaming surface.
type Response interface {
	StatusCode() int
	Body() io.ReadCloser
}

// ProgressFunc reports download progress in bytes. It is called once, after
// the body has been written; total is always -1, since Response carries no
// Content-Length.
type ProgressFunc func(downloaded, total int64)

// Downloader fetches links to a destination directory, verifying hashes
// and atomically renaming into place, per §4.5.
type Downloader struct {
	Session  Session
	Logger   log.Logger
	Progress ProgressFunc
}

// New constructs a Downloader.
func New(session Session, logger log.Logger, progress ProgressFunc) *Downloader {
	if logger == nil {
		logger = log.Default()
	}
	return &Downloader{Session: session, Logger: logger, Progress: progress}
}

// Download implements the §4.5 contract: download(link, destDir, hashes?) → path.
func (d *Downloader) Download(ctx context.Context, l link.Link, destDir string, allowedHashes map[string][]string) (string, error) {
	if l.IsFile() {
		return d.downloadFile(l, destDir)
	}
	return d.downloadRemote(ctx, l, destDir, allowedHashes)
}

func (d *Downloader) downloadFile(l link.Link, destDir string) (string, error) {
	u, err := url.Parse(stripVCSPrefix(l.URL))
	if err != nil {
		return "", finderr.New(finderr.KindUnsupportedScheme, l.URL, "malformed file URL", err)
	}
	src := u.Path

	info, err := os.Stat(src)
	if err != nil {
		return "", finderr.New(finderr.KindNetworkError, l.URL, "local file not found", err)
	}
	if info.IsDir() {
		// A local directory is returned in place; a local file (a wheel
		// included) is copied below, never moved.
		return src, nil
	}

	dest := filepath.Join(destDir, filepath.Base(src))
	if err := copyFile(src, dest); err != nil {
		return "", finderr.New(finderr.KindNetworkError, l.URL, "failed to copy local file", err)
	}
	return dest, nil
}

func stripVCSPrefix(u string) string {
	for _, scheme := range []string{"git+", "hg+", "svn+", "bzr+"} {
		if len(u) > len(scheme) && u[:len(scheme)] == scheme {
			return u[len(scheme):]
		}
	}
	return u
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func (d *Downloader) downloadRemote(ctx context.Context, l link.Link, destDir string, allowedHashes map[string][]string) (string, error) {
	resp, err := d.Session.Get(ctx, l.URL, nil)
	if err != nil {
		return "", finderr.WrapNetwork(err, l.Redacted())
	}
	defer resp.Body().Close()

	if resp.StatusCode() >= 400 {
		return "", finderr.New(finderr.KindNetworkError, l.Redacted(), fmt.Sprintf("HTTP %d", resp.StatusCode()), nil)
	}

	merged := mergeHashAllowList(allowedHashes, l.Hashes)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", finderr.New(finderr.KindUnpackError, destDir, "failed to create destination directory", err)
	}

	tmpFile, err := os.CreateTemp(destDir, ".unearth-download-*")
	if err != nil {
		return "", finderr.New(finderr.KindUnpackError, destDir, "failed to create temp file", err)
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	validator := NewValidator(merged)
	written, err := io.Copy(tmpFile, io.TeeReader(resp.Body(), validator))
	if cerr := tmpFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", finderr.New(finderr.KindNetworkError, l.Redacted(), "download interrupted", err)
	}
	if d.Progress != nil {
		d.Progress(written, -1)
	}

	if err := validator.Validate(l.Redacted()); err != nil {
		return "", err
	}

	finalPath := filepath.Join(destDir, l.Filename())
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", finderr.New(finderr.KindUnpackError, finalPath, "failed to finalize download", err)
	}
	cleanup = false
	return finalPath, nil
}

func mergeHashAllowList(caller map[string][]string, linkHashes map[string]string) map[string][]string {
	merged := map[string][]string{}
	for algo, list := range caller {
		merged[algo] = append(merged[algo], list...)
	}
	for algo, hex := range linkHashes {
		merged[algo] = appendUnique(merged[algo], hex)
	}
	return merged
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
