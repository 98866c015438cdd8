package pipeline

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/errors"
)

// Parse parses markup into the grid container. A fragment with a single
// root element uses that element as the container; anything else is
// wrapped in a <div>.
func Parse(markup string) (*html.Node, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "markup is empty")
	}
	return dom.ParseContainer(markup)
}
