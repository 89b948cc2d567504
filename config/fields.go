package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/heather/pkg/authority"
	"github.com/Ramsey-B/heather/pkg/models"
)

// FieldsFile lists the metadata fields eligible for authority linking.
//
//	fields:
//	  - dc.contributor.author
//	  - dc.contributor.editor
type FieldsFile struct {
	Fields []string `yaml:"fields"`
}

// LoadFields reads the authority field file at path.
func LoadFields(path string) ([]models.Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read authority fields file %s: %w", path, err)
	}
	return ParseFields(data)
}

// ParseFields decodes the YAML form of FieldsFile.
func ParseFields(data []byte) ([]models.Field, error) {
	var file FieldsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse authority fields: %w", err)
	}
	if len(file.Fields) == 0 {
		return nil, fmt.Errorf("%w: no authority fields configured", authority.ErrConfigurationMissing)
	}

	fields := make([]models.Field, 0, len(file.Fields))
	seen := map[string]bool{}
	for _, raw := range file.Fields {
		field, err := models.ParseField(raw)
		if err != nil {
			return nil, err
		}
		if seen[field.String()] {
			continue
		}
		seen[field.String()] = true
		fields = append(fields, field)
	}
	return fields, nil
}
