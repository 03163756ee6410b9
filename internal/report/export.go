package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/hunter/internal/model"
)

// FileExporter writes each report to <dir>/<id>.yaml, replacing the previous
// version atomically.
type FileExporter struct {
	dir string
}

func NewFileExporter(dir string) (*FileExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &FileExporter{dir: dir}, nil
}

func (e *FileExporter) Path(id string) string {
	return filepath.Join(e.dir, id+".yaml")
}

func (e *FileExporter) Export(r *model.Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", r.ID, err)
	}
	tmp, err := os.CreateTemp(e.dir, r.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write report %s: %w", r.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report %s: %w", r.ID, err)
	}
	return os.Rename(tmp.Name(), e.Path(r.ID))
}

// Load reads an exported report back.
func (e *FileExporter) Load(id string) (*model.Report, error) {
	data, err := os.ReadFile(e.Path(id))
	if err != nil {
		return nil, err
	}
	var r model.Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &r, nil
}
