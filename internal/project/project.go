package project

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/lasso/internal/export"
	"github.com/MeKo-Tech/lasso/internal/imagestore"
	"github.com/MeKo-Tech/lasso/internal/mask"
	"github.com/MeKo-Tech/lasso/internal/store"
)

// Project is the persisted snapshot of an annotation session: the image
// records, the categories, and the annotations. The core engine does not
// depend on this format; it only accepts and produces well-formed Annotation
// values.
type Project struct {
	Name        string             `yaml:"name"`
	SavedAt     time.Time          `yaml:"saved_at"`
	Images      []imagestore.Info  `yaml:"images"`
	Categories  []export.Category  `yaml:"categories"`
	Annotations []store.Annotation `yaml:"annotations"`
}

// Save writes the project to a YAML file, creating parent directories as
// needed.
func Save(path string, p Project) error {
	p.SavedAt = time.Now()
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("project: marshaling %q: %w", p.Name, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("project: creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("project: writing %s: %w", path, err)
	}
	return nil
}

// Load reads a project file and validates every annotation mask at the
// boundary, so the core only ever sees well-formed RLE values.
func Load(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, fmt.Errorf("project: reading %s: %w", path, err)
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("project: parsing %s: %w", path, err)
	}
	for _, a := range p.Annotations {
		if err := mask.Validate(a.Segmentation); err != nil {
			return Project{}, fmt.Errorf("project: annotation %d in %s: %w", a.ID, path, err)
		}
	}
	return p, nil
}
