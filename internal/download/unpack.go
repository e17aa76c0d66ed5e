package download

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"

	"github.com/frostming/unearth/internal/finderr"
)

// Unpack extracts an archive at path into targetDir, per §4.5. A .whl path
// is extracted as a zip like any other; the finder's download flow treats a
// wheel as the final artifact and does not pass it here.
func Unpack(path, targetDir string) error {
	lower := strings.ToLower(path)

	switch {
	case strings.HasSuffix(lower, ".zip") || strings.HasSuffix(lower, ".whl"):
		return unpackZip(path, targetDir)
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		return unpackTar(path, targetDir, gzipReader)
	case strings.HasSuffix(lower, ".tar.bz2") || strings.HasSuffix(lower, ".tbz"):
		return unpackTar(path, targetDir, bzip2Reader)
	case strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz"):
		return unpackTar(path, targetDir, xzReader)
	case strings.HasSuffix(lower, ".tar.lz"):
		return unpackTar(path, targetDir, lzipReader)
	case strings.HasSuffix(lower, ".tar"):
		return unpackTar(path, targetDir, func(r io.Reader) (io.Reader, error) { return r, nil })
	default:
		return finderr.New(finderr.KindUnpackError, path, "unrecognized archive format", nil)
	}
}

type decompressor func(io.Reader) (io.Reader, error)

func gzipReader(r io.Reader) (io.Reader, error)  { return gzip.NewReader(r) }
func bzip2Reader(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil }
func xzReader(r io.Reader) (io.Reader, error)    { return xz.NewReader(r) }
func lzipReader(r io.Reader) (io.Reader, error)  { return lzip.NewReader(r) }

func unpackTar(path, targetDir string, decompress decompressor) error {
	f, err := os.Open(path)
	if err != nil {
		return finderr.New(finderr.KindUnpackError, path, "failed to open archive", err)
	}
	defer f.Close()

	r, err := decompress(f)
	if err != nil {
		return finderr.New(finderr.KindUnpackError, path, "failed to decompress archive", err)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return finderr.New(finderr.KindUnpackError, path, "corrupt tar stream", err)
		}

		dest, err := safeJoin(targetDir, hdr.Name)
		if err != nil {
			return finderr.New(finderr.KindUnpackError, path, fmt.Sprintf("unsafe path traversal in %q", hdr.Name), err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return finderr.New(finderr.KindUnpackError, path, "failed to create directory", err)
			}
		case tar.TypeReg:
			if err := writeExtractedFile(dest, tr, hdr.FileInfo().Mode()); err != nil {
				return finderr.New(finderr.KindUnpackError, path, "failed to write extracted file", err)
			}
		case tar.TypeSymlink:
			// Symlinks inside sdists are rare; skip rather than trust an
			// archive-controlled link target.
			continue
		default:
			continue
		}
	}
}

func unpackZip(path, targetDir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return finderr.New(finderr.KindUnpackError, path, "failed to open zip archive", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		dest, err := safeJoin(targetDir, f.Name)
		if err != nil {
			return finderr.New(finderr.KindUnpackError, path, fmt.Sprintf("unsafe path traversal in %q", f.Name), err)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return finderr.New(finderr.KindUnpackError, path, "failed to create directory", err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return finderr.New(finderr.KindUnpackError, path, "failed to read zip entry", err)
		}
		err = writeExtractedFile(dest, rc, f.Mode())
		rc.Close()
		if err != nil {
			return finderr.New(finderr.KindUnpackError, path, "failed to write extracted file", err)
		}
	}
	return nil
}

// safeJoin resolves name against targetDir, rejecting any entry whose
// resolved path would escape targetDir (archive path-traversal, §4.5).
func safeJoin(targetDir, name string) (string, error) {
	dest := filepath.Join(targetDir, filepath.FromSlash(name))
	if !strings.HasPrefix(dest, filepath.Clean(targetDir)+string(os.PathSeparator)) && dest != filepath.Clean(targetDir) {
		return "", fmt.Errorf("entry %q escapes target directory", name)
	}
	return dest, nil
}

func writeExtractedFile(dest string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}
