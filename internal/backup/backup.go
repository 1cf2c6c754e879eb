// Package backup produces point-in-time archive backups: a pg_dump of the
// database plus a zip of the rendered static site, both written under a
// timestamped directory so successive backups never overwrite each other.
package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner executes backups.
type Runner struct {
	databaseURL string
	log         *logrus.Logger
}

// New creates a Runner. The database URL is passed to pg_dump verbatim.
func New(databaseURL string, log *logrus.Logger) *Runner {
	return &Runner{databaseURL: databaseURL, log: log}
}

// Result describes what one backup run produced.
type Result struct {
	Dir      string
	DumpFile string
	SiteZip  string
}

// Run writes a database dump and, when siteDir exists, a zip of the static
// site into a fresh timestamped directory under backupDir.
func (r *Runner) Run(ctx context.Context, backupDir, siteDir string) (*Result, error) {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	dir := filepath.Join(backupDir, stamp)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup dir %s: %w", dir, err)
	}

	res := &Result{Dir: dir}

	dumpFile, err := r.dumpDatabase(ctx, dir)
	if err != nil {
		return nil, err
	}

	res.DumpFile = dumpFile

	if _, err := os.Stat(siteDir); err == nil {
		zipFile, err := r.zipSite(siteDir, dir)
		if err != nil {
			return nil, err
		}

		res.SiteZip = zipFile
	} else {
		r.log.WithField("site_dir", siteDir).Debug("no static site to back up")
	}

	r.log.WithFields(logrus.Fields{
		"dir":      dir,
		"dump":     res.DumpFile,
		"site_zip": res.SiteZip,
	}).Info("backup complete")

	return res, nil
}

// dumpDatabase shells out to pg_dump in custom format, which supports
// selective and parallel restore via pg_restore.
func (r *Runner) dumpDatabase(ctx context.Context, dir string) (string, error) {
	dumpFile := filepath.Join(dir, "chatvault.dump")

	cmd := exec.CommandContext(ctx, "pg_dump",
		"--format=custom",
		"--file="+dumpFile,
		"--dbname="+r.databaseURL,
	)
	cmd.Stderr = r.log.WriterLevel(logrus.WarnLevel)

	r.log.WithField("file", dumpFile).Info("running pg_dump")

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pg_dump failed: %w", err)
	}

	return dumpFile, nil
}

// zipSite packs the rendered static site into site.zip inside dir.
func (r *Runner) zipSite(siteDir, dir string) (string, error) {
	zipFile := filepath.Join(dir, "site.zip")

	f, err := os.Create(zipFile)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", zipFile, err)
	}

	defer f.Close() //nolint:errcheck // error captured by the explicit Close below.

	zw := zip.NewWriter(f)

	err = filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(siteDir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("adding %s to zip: %w", rel, err)
		}

		src, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}

		defer src.Close() //nolint:errcheck // read-only file.

		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("copying %s into zip: %w", rel, err)
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("zipping site %s: %w", siteDir, err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalizing %s: %w", zipFile, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", zipFile, err)
	}

	return zipFile, nil
}
