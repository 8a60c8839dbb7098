package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/readmesync/readmesync/internal/config"
)

// File is one scaffolded file.
type File struct {
	// Path is relative to the repository root
	Path string
	// Written is false when an existing file was kept
	Written bool
}

// Scaffold writes the readmesync config, the pre-commit config and the
// workflow into repoPath. Existing files are kept unless force is set.
func Scaffold(repoPath string, cfg *config.Config, force bool) ([]File, error) {
	cfgData, err := cfg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", config.DefaultFileName, err)
	}
	preCommit, err := RenderPreCommit(cfg)
	if err != nil {
		return nil, err
	}
	wf, err := RenderWorkflow(cfg)
	if err != nil {
		return nil, err
	}

	planned := []struct {
		path string
		data []byte
	}{
		{config.DefaultFileName, cfgData},
		{PreCommitPath, preCommit},
		{WorkflowPath, wf},
	}

	files := make([]File, 0, len(planned))
	for _, p := range planned {
		full := filepath.Join(repoPath, filepath.FromSlash(p.path))
		if !force {
			if _, err := os.Stat(full); err == nil {
				files = append(files, File{Path: p.path})
				continue
			} else if !errors.Is(err, os.ErrNotExist) {
				return files, fmt.Errorf("failed to stat %s: %w", p.path, err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return files, fmt.Errorf("failed to create directory for %s: %w", p.path, err)
		}
		if err := os.WriteFile(full, p.data, 0644); err != nil {
			return files, fmt.Errorf("failed to write %s: %w", p.path, err)
		}
		files = append(files, File{Path: p.path, Written: true})
	}
	return files, nil
}
