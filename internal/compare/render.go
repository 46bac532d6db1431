package compare

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	matchColor    = color.New(color.FgGreen)
	mismatchColor = color.New(color.FgRed)
)

// Render walks the expected tree against the actual one and prints
// every field, matching fields in green and differing ones in red with
// both values shown. Fields present on only one side render red with a
// <missing> placeholder.
func Render(expected, actual interface{}) string {
	var b strings.Builder
	renderNode(&b, 0, "", expected, actual, true)
	return b.String()
}

const missing = "<missing>"

func renderNode(b *strings.Builder, depth int, label string, exp, act interface{}, actPresent bool) {
	indent := strings.Repeat("  ", depth)
	prefix := indent
	if label != "" {
		prefix += label + ": "
	}

	switch e := exp.(type) {
	case map[string]interface{}:
		a, ok := act.(map[string]interface{})
		if !ok && actPresent {
			mismatchColor.Fprintf(b, "%s%s != %s\n", prefix, renderValue(exp), actRendering(act, actPresent))
			return
		}
		fmt.Fprintf(b, "%s{\n", prefix)
		for _, k := range sortedKeys(e, a) {
			ev, eok := e[k]
			av, aok := a[k]
			switch {
			case eok:
				renderNode(b, depth+1, k, ev, av, aok && actPresent)
			default:
				mismatchColor.Fprintf(b, "%s  %s: %s != %s\n", indent, k, missing, renderValue(av))
			}
		}
		fmt.Fprintf(b, "%s}\n", indent)
	case []interface{}:
		a, ok := act.([]interface{})
		if !ok && actPresent {
			mismatchColor.Fprintf(b, "%s%s != %s\n", prefix, renderValue(exp), actRendering(act, actPresent))
			return
		}
		fmt.Fprintf(b, "%s[\n", prefix)
		for i, ev := range e {
			var av interface{}
			present := actPresent && ok && i < len(a)
			if present {
				av = a[i]
			}
			renderNode(b, depth+1, fmt.Sprintf("[%d]", i), ev, av, present)
		}
		for i := len(e); ok && i < len(a); i++ {
			mismatchColor.Fprintf(b, "%s  [%d]: %s != %s\n", indent, i, missing, renderValue(a[i]))
		}
		fmt.Fprintf(b, "%s]\n", indent)
	default:
		if actPresent && exp == act {
			matchColor.Fprintf(b, "%s%s\n", prefix, renderValue(exp))
			return
		}
		mismatchColor.Fprintf(b, "%s%s != %s\n", prefix, renderValue(exp), actRendering(act, actPresent))
	}
}

func actRendering(act interface{}, present bool) string {
	if !present {
		return missing
	}
	return renderValue(act)
}
