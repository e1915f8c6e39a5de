package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
)

// stdinPath reads the diagram from standard input.
const stdinPath = "-"

// readDiagramFile returns the raw diagram.json bytes from path, or from the
// command's input when path is "-".
func readDiagramFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == stdinPath {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, berrors.Wrap(berrors.ErrCodeFileReadFailed, "failed to read diagram from stdin", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, berrors.NewFileNotFoundError(path)
	default:
		return nil, berrors.Wrap(berrors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", path), err)
	}
}

// loadDiagram reads and parses a diagram.json document.
func loadDiagram(cmd *cobra.Command, path string) ([]byte, []diagram.Node, []diagram.Edge, error) {
	data, err := readDiagramFile(cmd, path)
	if err != nil {
		return nil, nil, nil, err
	}
	nodes, edges, err := diagram.Parse(data)
	if err != nil {
		return data, nil, nil, err
	}
	return data, nodes, edges, nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return berrors.NewFileWriteError(path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return berrors.NewFileWriteError(path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return berrors.NewFileWriteError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return berrors.NewFileWriteError(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return berrors.NewFileWriteError(path, err)
	}
	return nil
}
