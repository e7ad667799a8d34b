package specs

import (
	"strings"

	"golang.org/x/text/cases"
)

// Form field names.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldIndustry    = "industry"
	FieldFeatures    = "features"
)

// BusinessSpecification is the record posted to the API.
type BusinessSpecification struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Industry    string   `json:"industry"`
	Features    []string `json:"features"`
}

// Industry is one option of the industry select.
type Industry struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// IndustryOptions maps server identifiers to select options, in server order.
func IndustryOptions(ids []string) []Industry {
	options := make([]Industry, 0, len(ids))
	for _, id := range ids {
		options = append(options, Industry{Value: id, Label: id})
	}
	return options
}

// SplitFeatures turns comma-separated input into a list. Blank entries are dropped and
// entries differing only in case are kept once, first spelling wins.
func SplitFeatures(raw string) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{})
	features := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := fold.String(part)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		features = append(features, part)
	}
	return features
}

func assemble(values map[string]string) BusinessSpecification {
	return BusinessSpecification{
		Name:        values[FieldName],
		Description: values[FieldDescription],
		Industry:    values[FieldIndustry],
		Features:    SplitFeatures(values[FieldFeatures]),
	}
}
