package ingest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/termhub/termsync/errors"
)

// OpenArchive opens a local import archive: a bare JSON document, or a zip
// that must contain exactly one member.
func OpenArchive(path string) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return openZip(path)
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open import file %s", path)
		}
		return f, nil
	default:
		return nil, errors.Newf("import file %s must be a zip or json file", filepath.Base(path))
	}
}

func openZip(path string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open import archive %s", path)
	}

	var members []*zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			members = append(members, f)
		}
	}
	if len(members) != 1 {
		zr.Close()
		return nil, errors.Newf("import archive %s must contain exactly one file, found %d",
			filepath.Base(path), len(members))
	}

	rc, err := members[0].Open()
	if err != nil {
		zr.Close()
		return nil, errors.Wrapf(err, "failed to open archive member %s", members[0].Name)
	}
	return &zipEntry{rc: rc, zr: zr}, nil
}

// zipEntry closes the archive together with its single member.
type zipEntry struct {
	rc io.ReadCloser
	zr *zip.ReadCloser
}

func (z *zipEntry) Read(p []byte) (int, error) { return z.rc.Read(p) }

func (z *zipEntry) Close() error {
	err := z.rc.Close()
	if cerr := z.zr.Close(); err == nil {
		err = cerr
	}
	return err
}

// FindIntakeFile returns the single archive waiting in the intake directory,
// or "" when the directory is empty or absent. More than one waiting file is a
// configuration fault: the order of imports matters and must not be guessed.
func FindIntakeFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read intake directory %s", dir)
	}

	var found string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if found != "" {
			return "", errors.Newf("intake directory %s holds more than one file", dir)
		}
		found = filepath.Join(dir, e.Name())
	}
	return found, nil
}
