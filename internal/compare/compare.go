// Package compare performs deep structural comparison of JSON payloads
// and renders field-level diffs for mismatches.
package compare

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Result is the outcome of one comparison.
type Result struct {
	Equal bool
	// Path is the shallowest differing field in JSON-path form, e.g.
	// "$.contents.value" or "$[2].range.start.line".
	Path string
	// ExpectedAt and ActualAt are the values at Path.
	ExpectedAt string
	ActualAt   string
	// Diff is a colored field-by-field rendering of both payloads.
	Diff string
	// Warning is set when equality held only under a relaxed rule.
	Warning string
}

// Compare checks expected against actual. Both must be valid JSON.
// Null and an empty collection count as equal, with a warning: union
// types serialize "no results" through different variants and the
// distinction carries no information.
func Compare(expected, actual json.RawMessage) (Result, error) {
	var exp, act interface{}
	if err := json.Unmarshal(expected, &exp); err != nil {
		return Result{}, fmt.Errorf("parse expected: %w", err)
	}
	if err := json.Unmarshal(actual, &act); err != nil {
		return Result{}, fmt.Errorf("parse actual: %w", err)
	}

	w := &walker{}
	if w.equal("$", exp, act) {
		return Result{Equal: true, Warning: w.warning}, nil
	}
	return Result{
		Equal:      false,
		Path:       w.path,
		ExpectedAt: renderValue(w.expectedAt),
		ActualAt:   renderValue(w.actualAt),
		Diff:       Render(exp, act),
		Warning:    w.warning,
	}, nil
}

type walker struct {
	path       string
	expectedAt interface{}
	actualAt   interface{}
	warning    string
}

func (w *walker) fail(path string, exp, act interface{}) bool {
	w.path = path
	w.expectedAt = exp
	w.actualAt = act
	return false
}

func (w *walker) equal(path string, exp, act interface{}) bool {
	// Union variants only occur at the response root; a nested null
	// versus empty collection is a real mismatch.
	if path == "$" && relaxedEmpty(exp, act) {
		w.warning = "expected and actual encode an empty result through different union variants"
		return true
	}
	switch e := exp.(type) {
	case map[string]interface{}:
		a, ok := act.(map[string]interface{})
		if !ok {
			return w.fail(path, exp, act)
		}
		for _, k := range sortedKeys(e, a) {
			ev, eok := e[k]
			av, aok := a[k]
			if eok != aok {
				return w.fail(path+"."+k, ev, av)
			}
			if !w.equal(path+"."+k, ev, av) {
				return false
			}
		}
		return true
	case []interface{}:
		a, ok := act.([]interface{})
		if !ok {
			return w.fail(path, exp, act)
		}
		if len(e) != len(a) {
			return w.fail(path, exp, act)
		}
		for i := range e {
			if !w.equal(fmt.Sprintf("%s[%d]", path, i), e[i], a[i]) {
				return false
			}
		}
		return true
	default:
		if exp != act {
			return w.fail(path, exp, act)
		}
		return true
	}
}

// relaxedEmpty reports whether one side is null and the other an empty
// collection.
func relaxedEmpty(exp, act interface{}) bool {
	return (exp == nil && emptyColl(act)) || (act == nil && emptyColl(exp))
}

func emptyColl(v interface{}) bool {
	switch c := v.(type) {
	case []interface{}:
		return len(c) == 0
	case map[string]interface{}:
		return len(c) == 0
	}
	return false
}

func sortedKeys(ms ...map[string]interface{}) []string {
	seen := map[string]bool{}
	var keys []string
	for _, m := range ms {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func renderValue(v interface{}) string {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}
