package catalog

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// maxEntryBytes caps a single archive entry to guard against decompression
// bombs; the largest RDF files are a few megabytes.
const maxEntryBytes = 256 << 20

// ExtractArchive unpacks the .tar.zip catalog archive (a zip wrapping a
// single tar) into the data directory. Extraction is all-or-nothing: any
// error fails the run. A previously extracted non-empty directory is
// reused without touching the archive.
func (s *Source) ExtractArchive(ctx context.Context, archivePath string) (string, error) {
	dest := filepath.Join(s.cfg.DataDir, ExtractDirName)

	if entries, err := os.ReadDir(dest); err == nil && len(entries) > 0 {
		s.logger.Info("Catalog already extracted; skipping",
			zap.String("dir", dest))
		return dest, nil
	}

	if err := os.MkdirAll(dest, 0o750); err != nil {
		return "", fmt.Errorf("create extract dir %s: %w", dest, err)
	}

	if err := extractZip(ctx, archivePath, dest); err != nil {
		return "", fmt.Errorf("extract zip %s: %w", archivePath, err)
	}

	tarPath, err := findTar(dest)
	if err != nil {
		return "", err
	}
	if tarPath != "" {
		if err := extractTar(ctx, tarPath, dest); err != nil {
			return "", fmt.Errorf("extract tar %s: %w", tarPath, err)
		}
		s.logger.Info("Catalog archive extracted",
			zap.String("tar", tarPath),
			zap.String("dir", dest))
	}
	return dest, nil
}

func extractZip(ctx context.Context, archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.Close()
	}()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := securePath(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				return err
			}
			continue
		}
		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(dst, io.LimitReader(src, maxEntryBytes))
	if closeErr := dst.Close(); copyErr == nil {
		copyErr = closeErr
	}
	return copyErr
}

func extractTar(ctx context.Context, tarPath, dest string) error {
	f, err := os.Open(tarPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	tr := tar.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := securePath(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return err
			}
			dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
			if err != nil {
				return err
			}
			_, copyErr := io.Copy(dst, io.LimitReader(tr, maxEntryBytes))
			if closeErr := dst.Close(); copyErr == nil {
				copyErr = closeErr
			}
			if copyErr != nil {
				return copyErr
			}
		default:
			// Symlinks and specials in the catalog archive are ignored.
		}
	}
}

// findTar locates the tar wrapped inside the zip, if any.
func findTar(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read extract dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".tar") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", nil
}

// securePath joins name under dest, rejecting path traversal.
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction dir", name)
	}
	return target, nil
}
