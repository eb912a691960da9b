// Package catalog loads the job catalog and builds its embedding index.
package catalog

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/spigell/talentmatch/internal/models"
)

//go:embed schema.json
var schemaJSON string

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Catalog is the set of postings available for matching.
type Catalog struct {
	Jobs []models.JobPosting `json:"jobs" yaml:"jobs"`
}

// Load reads a catalog file. The format follows the file extension; anything
// other than .yaml or .yml is treated as JSON.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %q", path)
	}

	cat, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, errors.Wrapf(err, "catalog %q", path)
	}
	return cat, nil
}

// FormatFor guesses the format from a file name.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes, schema-checks and validates a catalog document.
func Parse(data []byte, format Format) (*Catalog, error) {
	doc, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "schema validation")
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			messages = append(messages, field+": "+desc.Description())
		}
		return nil, errors.WithHint(
			errors.Newf("catalog does not match schema: %s", strings.Join(messages, "; ")),
			"every job needs an id and a title",
		)
	}

	var cat Catalog
	if err := json.Unmarshal(doc, &cat); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks every posting and rejects duplicate IDs.
func (c *Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.Jobs))
	for i := range c.Jobs {
		job := &c.Jobs[i]
		if err := job.Validate(); err != nil {
			return err
		}
		if _, dup := seen[job.ID]; dup {
			return errors.Newf("duplicate job id %q", job.ID)
		}
		seen[job.ID] = struct{}{}
	}
	return nil
}

// toJSON normalises the document to JSON so one schema covers both formats.
func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		if !json.Valid(data) {
			return nil, errors.New("catalog is not valid JSON")
		}
		return data, nil
	case FormatYAML:
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, errors.Wrap(err, "decode YAML catalog")
		}
		doc, err := json.Marshal(generic)
		if err != nil {
			return nil, errors.Wrap(err, "convert YAML catalog")
		}
		return doc, nil
	default:
		return nil, errors.Newf("unknown catalog format %q", format)
	}
}
