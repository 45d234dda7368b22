package archive

import (
	"fmt"
	"sort"
	"strings"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

// DetectError reports that an archive matched no format or more than one.
type DetectError struct {
	// Matched lists the formats that accepted the archive.
	Matched []dictionary.Kind
	// Diagnostics holds the rejection reason of every other format.
	Diagnostics map[dictionary.Kind]error
}

func (e *DetectError) Error() string {
	if len(e.Matched) > 1 {
		names := make([]string, len(e.Matched))
		for i, k := range e.Matched {
			names[i] = string(k)
		}
		return fmt.Sprintf("ambiguous archive format, matched formats: [%s]", strings.Join(names, ", "))
	}
	kinds := make([]string, 0, len(e.Diagnostics))
	for k := range e.Diagnostics {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s: %v", k, e.Diagnostics[dictionary.Kind(k)])
	}
	return fmt.Sprintf("no archive format matched (%s)", strings.Join(parts, "; "))
}

func (e *DetectError) Unwrap() error {
	if len(e.Matched) > 1 {
		return dictionary.ErrAmbiguousFormat
	}
	return dictionary.ErrNoFormatMatched
}

// Detect runs every importer's Validate and returns the single one that
// accepts archive.
func Detect(archive []byte, importers []Importer) (Importer, error) {
	var matched []Importer
	diagnostics := make(map[dictionary.Kind]error, len(importers))
	for _, imp := range importers {
		if err := imp.Validate(archive); err != nil {
			diagnostics[imp.Kind()] = err
			continue
		}
		matched = append(matched, imp)
	}
	if len(matched) == 1 {
		return matched[0], nil
	}
	de := &DetectError{Diagnostics: diagnostics}
	for _, imp := range matched {
		de.Matched = append(de.Matched, imp.Kind())
	}
	return nil, de
}

// ByKind returns the importer for kind, or dictionary.ErrNotFound.
func ByKind(kind dictionary.Kind, importers []Importer) (Importer, error) {
	for _, imp := range importers {
		if imp.Kind() == kind {
			return imp, nil
		}
	}
	return nil, fmt.Errorf("importer for %q: %w", kind, dictionary.ErrNotFound)
}
