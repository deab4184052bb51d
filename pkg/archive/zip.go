package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func (e *Extractor) extractZip(bundle, dir string) error {
	f, err := e.fs.Open(bundle)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat zip: %w", err)
	}
	zr, err := zip.NewReader(f, fi.Size())
	if err != nil {
		return fmt.Errorf("zip read error: %w", err)
	}

	for _, zf := range zr.File {
		if err := e.validator.CheckName(zf.Name); err != nil {
			return fmt.Errorf("invalid path in zip: %w", err)
		}
		target := filepath.Join(dir, filepath.FromSlash(strings.ReplaceAll(zf.Name, `\`, "/")))
		mode := zf.Mode()

		switch {
		case zf.FileInfo().IsDir():
			if err := e.fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case mode&os.ModeSymlink != 0:
			linkname, err := readLink(zf)
			if err != nil {
				return err
			}
			if err := e.link(zf.Name, target, linkname); err != nil {
				return err
			}

		default:
			if err := e.validator.CheckSize(int64(zf.UncompressedSize64)); err != nil {
				return err
			}
			if err := e.writeZipFile(zf, target, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Extractor) writeZipFile(zf *zip.File, target string, mode os.FileMode) error {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", zf.Name, err)
	}
	defer rc.Close()

	out, err := e.create(target, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(e.validator.Guard(out), rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// readLink returns a zip symlink's target, stored as the entry body.
func readLink(zf *zip.File) (string, error) {
	rc, err := zf.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", zf.Name, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read link %s: %w", zf.Name, err)
	}
	return string(b), nil
}
