package backup_test

import (
	"archive/zip"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/chatvault/chatvault/internal/backup"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

func TestRun_FullBackup(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if _, err := exec.LookPath("pg_dump"); err != nil {
		t.Skip("pg_dump not installed")
	}

	siteDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(siteDir, "index.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("seeding site dir: %v", err)
	}

	backupDir := t.TempDir()

	res, err := backup.New(dbURL, testLogger()).Run(context.Background(), backupDir, siteDir)
	if err != nil {
		t.Fatalf("running backup: %v", err)
	}

	if _, err := os.Stat(res.DumpFile); err != nil {
		t.Errorf("expected dump file: %v", err)
	}

	zr, err := zip.OpenReader(res.SiteZip)
	if err != nil {
		t.Fatalf("opening site zip: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 1 || zr.File[0].Name != "index.html" {
		t.Errorf("unexpected zip contents: %v", zr.File)
	}
}

func TestRun_MissingSiteDirIsNotAnError(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if _, err := exec.LookPath("pg_dump"); err != nil {
		t.Skip("pg_dump not installed")
	}

	backupDir := t.TempDir()

	res, err := backup.New(dbURL, testLogger()).Run(context.Background(), backupDir, filepath.Join(backupDir, "no-site"))
	if err != nil {
		t.Fatalf("running backup: %v", err)
	}

	if res.SiteZip != "" {
		t.Errorf("expected no site zip, got %s", res.SiteZip)
	}
}
