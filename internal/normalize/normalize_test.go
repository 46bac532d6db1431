package normalize

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"
)

func TestNormalizeRelativizesURIs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "src")
	inside := string(uri.File(filepath.Join(root, "main.rs")))
	nested := string(uri.File(filepath.Join(root, "sub", "lib.rs")))
	outside := string(uri.File("/etc/passwd"))

	raw, err := json.Marshal([]map[string]interface{}{
		{"uri": inside},
		{"uri": nested},
		{"uri": outside},
		{"uri": "https://example.com/doc"},
	})
	require.NoError(t, err)

	out, err := Normalize(raw, Options{SourceRoot: root})
	require.NoError(t, err)

	var got []map[string]string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "main.rs", got[0]["uri"])
	assert.Equal(t, "sub/lib.rs", got[1]["uri"])
	assert.Equal(t, outside, got[2]["uri"], "URIs outside the root pass through")
	assert.Equal(t, "https://example.com/doc", got[3]["uri"], "non-file URIs pass through")
}

func TestNormalizeRewritesMapKeys(t *testing.T) {
	root := filepath.Join(t.TempDir(), "src")
	key := string(uri.File(filepath.Join(root, "main.rs")))

	raw, err := json.Marshal(map[string]interface{}{
		"changes": map[string]interface{}{
			key: []interface{}{
				map[string]interface{}{"newText": "renamed"},
			},
		},
	})
	require.NoError(t, err)

	out, err := Normalize(raw, Options{SourceRoot: root})
	require.NoError(t, err)

	var got struct {
		Changes map[string]json.RawMessage `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	_, ok := got.Changes["main.rs"]
	assert.True(t, ok, "WorkspaceEdit.changes keys must be relativized, got %v", got.Changes)
}

func TestNormalizeIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "src")
	raw, err := json.Marshal(map[string]interface{}{
		"uri": string(uri.File(filepath.Join(root, "main.rs"))),
		"nested": map[string]interface{}{
			"uri": string(uri.File(filepath.Join(root, "other.rs"))),
		},
	})
	require.NoError(t, err)

	opts := Options{SourceRoot: root}
	once, err := Normalize(raw, opts)
	require.NoError(t, err)
	twice, err := Normalize(once, opts)
	require.NoError(t, err)
	assert.Equal(t, string(once), string(twice))
}

func TestNormalizeShapes(t *testing.T) {
	t.Run("single location becomes array", func(t *testing.T) {
		raw := json.RawMessage(`{"uri":"main.rs","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":4}}}`)
		out, err := Normalize(raw, Options{Shape: ShapeLocationList})
		require.NoError(t, err)

		var got []json.RawMessage
		require.NoError(t, json.Unmarshal(out, &got))
		assert.Len(t, got, 1)
	})

	t.Run("location array unchanged", func(t *testing.T) {
		raw := json.RawMessage(`[{"uri":"main.rs"}]`)
		out, err := Normalize(raw, Options{Shape: ShapeLocationList})
		require.NoError(t, err)

		var got []json.RawMessage
		require.NoError(t, json.Unmarshal(out, &got))
		assert.Len(t, got, 1)
	})

	t.Run("bare item array becomes completion list", func(t *testing.T) {
		raw := json.RawMessage(`[{"label":"main"}]`)
		out, err := Normalize(raw, Options{Shape: ShapeCompletionList})
		require.NoError(t, err)

		var got struct {
			IsIncomplete *bool             `json:"isIncomplete"`
			Items        []json.RawMessage `json:"items"`
		}
		require.NoError(t, json.Unmarshal(out, &got))
		require.NotNil(t, got.IsIncomplete)
		assert.False(t, *got.IsIncomplete)
		assert.Len(t, got.Items, 1)
	})

	t.Run("completion list form unchanged", func(t *testing.T) {
		raw := json.RawMessage(`{"isIncomplete":true,"items":[]}`)
		out, err := Normalize(raw, Options{Shape: ShapeCompletionList})
		require.NoError(t, err)

		var got struct {
			IsIncomplete bool `json:"isIncomplete"`
		}
		require.NoError(t, json.Unmarshal(out, &got))
		assert.True(t, got.IsIncomplete)
	})
}

func TestCollapseEscapesTargetedKeys(t *testing.T) {
	raw := json.RawMessage(`{
		"contents": {"kind": "markdown", "value": "escaped \\\\*text\\\\*"},
		"message": "bad \\\\n escape",
		"documentation": "see \\\\[docs]",
		"label": "left \\\\ alone"
	}`)

	out, err := CollapseEscapes(raw)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &got))
	contents := got["contents"].(map[string]interface{})
	assert.Equal(t, `escaped \*text\*`, contents["value"])
	assert.Equal(t, `bad \n escape`, got["message"])
	assert.Equal(t, `see \[docs]`, got["documentation"])
	assert.Equal(t, `left \\ alone`, got["label"], "non-documentation fields keep their backslashes")
}

func TestCollapseEscapesStringContents(t *testing.T) {
	raw := json.RawMessage(`{"contents": "plain \\\\*markdown\\\\*"}`)
	out, err := CollapseEscapes(raw)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, `plain \*markdown\*`, got["contents"])
}
