package parser

import (
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"banking/internal/rawjson"
)

var titleCaser = cases.Title(language.Und)

// TitleCase renders provider shouting-case literals ("SUPERMERCADOS XYZ")
// as display names ("Supermercados Xyz").
func TitleCase(text string) string {
	return titleCaser.String(text)
}

// DetailSpec maps one provider payload path to a detail key. Several specs
// may share a key: the first path that resolves wins, later ones act as
// fallbacks. An optional regex narrows the raw value to its first capture
// group; a non-matching regex discards the candidate.
type DetailSpec struct {
	Key   string
	Path  string
	Regex string
	Title bool
}

// ExtractDetails resolves a spec table against a raw record, producing the
// provider-extracted facts carried on the canonical transaction.
func ExtractDetails(raw rawjson.Document, specs []DetailSpec) map[string]string {
	details := make(map[string]string)
	for _, spec := range specs {
		if _, done := details[spec.Key]; done {
			continue
		}
		value, ok := rawjson.GetString(raw, spec.Path)
		if !ok {
			continue
		}
		if spec.Regex != "" {
			match := regexp.MustCompile(spec.Regex).FindStringSubmatch(value)
			if match == nil {
				continue
			}
			value = match[1]
		}
		if spec.Title {
			value = TitleCase(value)
		}
		details[spec.Key] = value
	}
	return details
}

// ExtractLiterals collects the string values at the given paths, skipping
// missing ones. These literals feed keyword extraction.
func ExtractLiterals(raw rawjson.Document, paths []string) []string {
	literals := make([]string, 0, len(paths))
	for _, path := range paths {
		if value, ok := rawjson.GetString(raw, path); ok {
			literals = append(literals, value)
		}
	}
	return literals
}

// DetailLiterals collects the string-valued details, which join the
// provider literal fields as keyword sources.
func DetailLiterals(details map[string]string) []string {
	literals := make([]string, 0, len(details))
	for _, value := range details {
		literals = append(literals, value)
	}
	return literals
}
