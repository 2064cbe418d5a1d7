package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vocdoni/davinci-ballotbox/log"
)

// DirExporter writes archives as files of a local directory.
type DirExporter struct {
	dir string
}

var _ Exporter = (*DirExporter)(nil)

// NewDirExporter creates the directory if needed.
func NewDirExporter(dir string) (*DirExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &DirExporter{dir: dir}, nil
}

// Export writes <cid>.json and returns its path. Exporting the same archive
// twice leaves a single file.
func (d *DirExporter) Export(ctx context.Context, a *Archive) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(d.dir, a.FileName())
	tmp, err := os.CreateTemp(d.dir, ".archive-*")
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			log.Warnw("failed to remove temporary archive", "file", tmp.Name(), "error", err.Error())
		}
	}()
	if _, err := tmp.Write(a.Body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	log.Infow("archive exported", "electionId", a.Election.ID, "cid", a.CID.String(), "path", path)
	return path, nil
}
