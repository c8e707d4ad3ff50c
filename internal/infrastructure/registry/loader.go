package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/duragraph/duragraph/internal/infrastructure/bpmnxml"
)

// LoadModelsFromDir parses every *.bpmn file directly under dir and
// registers it under its file name, mirroring the original server's
// startup scan of its models directory. A file that fails to parse aborts
// the whole load — a malformed model is a startup-fatal condition (spec §7
// ParseError "fatal at load; model excluded" describes the per-model
// outcome; refusing to start with a known-bad deployment is the safer
// default for this loader).
func LoadModelsFromDir(r *Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read models dir %q: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".bpmn" {
			continue
		}

		path := filepath.Join(dir, e.Name())
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read model %q: %w", path, err)
		}

		model, err := bpmnxml.Parse(source)
		if err != nil {
			return fmt.Errorf("parse model %q: %w", path, err)
		}

		r.LoadModel(e.Name(), model)
		r.LoadModelSource(e.Name(), source)
	}

	return nil
}
