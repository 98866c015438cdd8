package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

type declaration struct {
	prop, value string
}

func parseStyle(s string) []declaration {
	var out []declaration
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		if prop == "" {
			continue
		}
		out = append(out, declaration{prop, value})
	}
	return out
}

func formatStyle(decls []declaration) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.prop + ": " + d.value + ";"
	}
	return strings.Join(parts, " ")
}

// StyleValue returns the inline style value of prop, or "" when unset.
func StyleValue(n *html.Node, prop string) string {
	s, ok := Attr(n, "style")
	if !ok {
		return ""
	}
	prop = strings.ToLower(prop)
	val := ""
	for _, d := range parseStyle(s) {
		if d.prop == prop {
			val = d.value
		}
	}
	return val
}

// SetStyle sets one inline style declaration, keeping the position of an
// existing declaration. An empty value removes the declaration.
func SetStyle(n *html.Node, prop, value string) {
	SetStyles(n, map[string]string{prop: value}, []string{prop})
}

// SetStyles applies several declarations in the given key order.
func SetStyles(n *html.Node, values map[string]string, order []string) {
	cur, _ := Attr(n, "style")
	decls := parseStyle(cur)
	for _, prop := range order {
		value := values[prop]
		prop = strings.ToLower(prop)
		idx := -1
		for i, d := range decls {
			if d.prop == prop {
				idx = i
			}
		}
		switch {
		case value == "" && idx >= 0:
			decls = append(decls[:idx], decls[idx+1:]...)
		case value == "":
		case idx >= 0:
			decls[idx].value = value
		default:
			decls = append(decls, declaration{prop, value})
		}
	}
	next := formatStyle(decls)
	if next == cur {
		return
	}
	SetAttr(n, "style", next)
}

// StyleSnapshot is the raw style attribute of an element.
type StyleSnapshot struct {
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

// SnapshotStyle captures the raw style attribute of n.
func SnapshotStyle(n *html.Node) StyleSnapshot {
	v, ok := Attr(n, "style")
	return StyleSnapshot{Value: v, Present: ok}
}

// RestoreStyle writes a snapshot back, removing the attribute if it was absent.
func RestoreStyle(n *html.Node, s StyleSnapshot) {
	if s.Present {
		SetAttr(n, "style", s.Value)
		return
	}
	RemoveAttr(n, "style")
}

// ParseLength parses "12", "12px" or "50%". pct reports a percentage.
func ParseLength(s string) (v float64, pct bool, ok bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case strings.HasSuffix(s, "%"):
		s, pct = strings.TrimSuffix(s, "%"), true
	case strings.HasSuffix(s, "px"):
		s = strings.TrimSuffix(s, "px")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, false
	}
	return f, pct, true
}

// Px formats v as a CSS pixel length.
func Px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// Percent formats v as a CSS percentage.
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
