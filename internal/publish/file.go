package publish

import (
	"context"
	"os"
	"path/filepath"
)

// FilePublisher writes archives into Dir.
type FilePublisher struct {
	Dir string
}

func (p *FilePublisher) Target() string { return "file" }

// Publish writes the archive through a temporary file so readers never see a
// partial archive.
func (p *FilePublisher) Publish(ctx context.Context, filename string, archive []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if filename == "" || filepath.Base(filename) != filename {
		return "", publishError(p.Target(), "invalid archive name %q", nil, filename)
	}

	dir := p.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", publishError(p.Target(), "failed to create %s", err, dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filename+".*")
	if err != nil {
		return "", publishError(p.Target(), "failed to create temporary file in %s", err, dir)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(archive); err != nil {
		_ = tmp.Close()
		return "", publishError(p.Target(), "failed to write %s", err, tmpName)
	}
	if err := tmp.Close(); err != nil {
		return "", publishError(p.Target(), "failed to close %s", err, tmpName)
	}

	target := filepath.Join(dir, filename)
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", publishError(p.Target(), "failed to set permissions on %s", err, tmpName)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", publishError(p.Target(), "failed to move archive to %s", err, target)
	}
	return target, nil
}

var _ Publisher = (*FilePublisher)(nil)
