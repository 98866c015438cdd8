package pipeline

import (
	"encoding/json"

	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/grid"
)

// Render generates output artifacts in the requested formats: the laid-out
// container markup (html) and the grid status (json).
func Render(el *html.Node, st grid.Status, formats []string) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(formats))
	for _, format := range formats {
		switch format {
		case FormatHTML:
			artifacts[format] = []byte(dom.OuterHTML(el))
		case FormatJSON:
			data, err := MarshalStatus(st)
			if err != nil {
				return nil, err
			}
			artifacts[format] = data
		default:
			return nil, errors.New(errors.ErrCodeInvalidOption, "unsupported format: %s", format)
		}
	}
	return artifacts, nil
}

// MarshalStatus serializes a status as indented JSON.
func MarshalStatus(st grid.Status) ([]byte, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "serialize status")
	}
	return data, nil
}

// UnmarshalStatus parses a status produced by MarshalStatus.
func UnmarshalStatus(data []byte) (grid.Status, error) {
	var st grid.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return grid.Status{}, errors.Wrap(errors.ErrCodeInvalidStatus, err, "parse status")
	}
	return st, nil
}
