package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

func (e *Extractor) extractTarXz(bundle, dir string) error {
	f, err := e.fs.Open(bundle)
	if err != nil {
		return fmt.Errorf("failed to open tar.xz: %w", err)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("xz read error: %w", err)
	}
	tarReader := tar.NewReader(xr)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		if err := e.validator.CheckName(header.Name); err != nil {
			return fmt.Errorf("invalid path in tar: %w", err)
		}
		target := filepath.Join(dir, filepath.FromSlash(header.Name))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := e.fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if err := e.validator.CheckSize(header.Size); err != nil {
				return err
			}
			out, err := e.create(target, os.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(e.validator.Guard(out), tarReader); err != nil {
				out.Close()
				return fmt.Errorf("failed to write file: %w", err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to close file: %w", err)
			}

		case tar.TypeSymlink:
			if err := e.link(header.Name, target, header.Linkname); err != nil {
				return err
			}
		}
	}
}
