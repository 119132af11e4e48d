package index

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
)

// DescriptorName is the experiment descriptor file looked for in the
// experiment root.
const DescriptorName = "metadata.yaml"

// Descriptor is the optional per-experiment metadata file.
type Descriptor struct {
	Contact     string      `yaml:"contact"`
	Email       string      `yaml:"email"`
	Created     string      `yaml:"created"`
	Description string      `yaml:"description"`
	Notes       string      `yaml:"notes"`
	Keywords    keywordList `yaml:"keywords"`
}

// keywordList accepts either a single scalar or a sequence of keywords.
type keywordList []string

func (k *keywordList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*k = keywordList{single}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return err
	}
	*k = keywordList(many)
	return nil
}

// ReadDescriptor loads metadata.yaml from an experiment root. A missing
// descriptor is not an error; a malformed one degrades to a warning.
func ReadDescriptor(rootDir string) *Descriptor {
	path := filepath.Join(rootDir, DescriptorName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("error reading metadata file",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		slog.Warn("error parsing metadata file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}
	return &d
}

// Apply merges the descriptor's non-empty fields onto an experiment.
// Keyword strings are raw here; interning happens during the merge.
func (d *Descriptor) Apply(e *catalog.Experiment) {
	if d == nil {
		return
	}
	if d.Contact != "" {
		e.Contact = d.Contact
	}
	if d.Email != "" {
		e.Email = d.Email
	}
	if d.Created != "" {
		e.Created = d.Created
	}
	if d.Description != "" {
		e.Description = d.Description
	}
	if d.Notes != "" {
		e.Notes = d.Notes
	}
}
