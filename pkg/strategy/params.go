package strategy

import (
	"math"

	"github.com/matzehuels/gridflow/pkg/errors"
)

// Float reads a numeric parameter.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, errors.New(errors.ErrCodeInvalidStrategy, "parameter %s must be a number, got %T", key, v)
}

// Int reads an integral parameter.
func (p Params) Int(key string, def int) (int, error) {
	f, err := p.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errors.New(errors.ErrCodeInvalidStrategy, "parameter %s must be an integer, got %v", key, f)
	}
	return int(f), nil
}

// String reads a string parameter.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.New(errors.ErrCodeInvalidStrategy, "parameter %s must be a string, got %T", key, v)
	}
	return s, nil
}
