package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"banking/internal/models"
)

type categoryEntry struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Subcategories []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"subcategories"`
}

// LoadCategories reads the two-level category tree and flattens it into a
// lookup table keyed by category id. Subcategories record their parent.
func LoadCategories(path string) (map[string]models.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file: %w", err)
	}
	var entries []categoryEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse categories file: %w", err)
	}

	categories := make(map[string]models.Category)
	add := func(id, name, parent string) error {
		if id == "" {
			return fmt.Errorf("category entry without an id")
		}
		if _, exists := categories[id]; exists {
			return fmt.Errorf("duplicated category id %q", id)
		}
		categories[id] = models.Category{ID: id, Name: name, ParentID: parent}
		return nil
	}

	for _, entry := range entries {
		if err := add(entry.ID, entry.Name, ""); err != nil {
			return nil, err
		}
		for _, sub := range entry.Subcategories {
			if err := add(sub.ID, sub.Name, entry.ID); err != nil {
				return nil, err
			}
		}
	}
	return categories, nil
}
