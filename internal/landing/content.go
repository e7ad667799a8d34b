// Package landing renders the marketing home page.
package landing

import (
	"errors"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// Section is one feature teaser on the home page.
type Section struct {
	Heading string `yaml:"heading"`
	Body    string `yaml:"body"`
	Link    string `yaml:"link"`
	CTA     string `yaml:"cta"`
}

// Content is the editorial copy of the home page.
type Content struct {
	Title    string    `yaml:"title"`
	Tagline  string    `yaml:"tagline"`
	Sections []Section `yaml:"sections"`
}

// LoadContent decodes the YAML file at path within fsys.
func LoadContent(fsys fs.FS, path string) (Content, error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return Content{}, fmt.Errorf("landing: read %s: %w", path, err)
	}
	var content Content
	if err := yaml.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("landing: decode %s: %w", path, err)
	}
	if content.Title == "" {
		return Content{}, errors.New("landing: title is required")
	}
	return content, nil
}
