// Package affinity decides whether a centrally-broadcast update applies
// to a given project. Rules are reference data loaded from a JSON
// registry; evaluation is a pure function over the project configuration
// document. Every failure mode evaluates false: a broadcast is never
// applied to a project it cannot be positively matched to.
package affinity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
)

// Conditions supported by rules.
const (
	CondAlways        = "always"
	CondEquals        = "equals"
	CondContains      = "contains"
	CondHasValueWhere = "hasValueWhere"
)

// Rule is a predicate over a project configuration document.
type Rule struct {
	Condition string         `json:"condition"`
	Path      string         `json:"path,omitempty"`
	Value     any            `json:"value,omitempty"`
	Where     map[string]any `json:"where,omitempty"`
}

// Registry maps rule names to rules.
type Registry map[string]Rule

// LoadRegistry reads the rule registry at path. A missing file is an
// empty registry: records referencing unknown rules are then excluded
// by the fail-closed evaluation.
func LoadRegistry(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Registry{}, nil
		}
		return nil, fmt.Errorf("affinity: read registry %s: %w", path, err)
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("affinity: parse registry %s: %w", path, err)
	}
	return reg, nil
}

// LoadProjectConfig reads the project configuration document (JSON) the
// rules are evaluated against. A missing file yields an empty document,
// which makes every non-always rule evaluate false.
func LoadProjectConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("affinity: read project config %s: %w", path, err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("affinity: parse project config %s: %w", path, err)
	}
	return cfg, nil
}

// Evaluate reports whether rule matches cfg. Unknown conditions and
// unresolvable paths evaluate false.
func Evaluate(rule Rule, cfg map[string]any) bool {
	switch rule.Condition {
	case CondAlways:
		return true

	case CondEquals:
		v, ok := resolve(cfg, rule.Path)
		if !ok {
			return false
		}
		return reflect.DeepEqual(v, rule.Value)

	case CondContains:
		v, ok := resolve(cfg, rule.Path)
		if !ok {
			return false
		}
		seq, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range seq {
			if reflect.DeepEqual(item, rule.Value) {
				return true
			}
		}
		return false

	case CondHasValueWhere:
		v, ok := resolve(cfg, rule.Path)
		if !ok || len(rule.Where) == 0 {
			return false
		}
		seq, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range seq {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if matchesWhere(obj, rule.Where) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// matchesWhere checks every where field for equality (logical AND).
func matchesWhere(obj map[string]any, where map[string]any) bool {
	for field, want := range where {
		got, ok := obj[field]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// resolve walks a dot-path through nested objects.
func resolve(cfg map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = cfg
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
