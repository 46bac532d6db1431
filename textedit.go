package lspressoshot

import (
	"fmt"
	"sort"
	"strings"

	"go.lsp.dev/protocol"
)

// applyTextEdits replays a formatting edit list against the source
// buffer, the way an editor would, and returns the resulting text.
// Offsets are computed per the protocol's line/character positions;
// character counts are treated as byte offsets within the line, which
// holds for the ASCII sources tests use.
func applyTextEdits(src string, edits []protocol.TextEdit) (string, error) {
	if len(edits) == 0 {
		return src, nil
	}

	type span struct {
		start, end int
		order      int
		newText    string
	}
	spans := make([]span, 0, len(edits))
	for i, e := range edits {
		start, err := offsetOf(src, e.Range.Start)
		if err != nil {
			return "", err
		}
		end, err := offsetOf(src, e.Range.End)
		if err != nil {
			return "", err
		}
		if end < start {
			return "", fmt.Errorf("edit range ends before it starts: %v", e.Range)
		}
		spans = append(spans, span{start: start, end: end, order: i, newText: e.NewText})
	}

	// Apply back to front so earlier offsets stay valid. Inserts that
	// share a position land in list order, which means the later list
	// entry has to be spliced in first.
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start > spans[j].start
		}
		return spans[i].order > spans[j].order
	})
	for i := 1; i < len(spans); i++ {
		if spans[i].end > spans[i-1].start {
			return "", fmt.Errorf("overlapping edits at offset %d", spans[i].end)
		}
	}

	out := src
	for _, s := range spans {
		out = out[:s.start] + s.newText + out[s.end:]
	}
	return out, nil
}

// offsetOf converts a line/character position to a byte offset.
// Positions past the end of a line or file clamp, matching editor
// behavior for edits that target the trailing newline.
func offsetOf(src string, pos protocol.Position) (int, error) {
	lines := strings.SplitAfter(src, "\n")
	if int(pos.Line) >= len(lines) {
		return len(src), nil
	}
	offset := 0
	for i := 0; i < int(pos.Line); i++ {
		offset += len(lines[i])
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	content := strings.TrimSuffix(line, "\n")
	if col > len(content) {
		col = len(content)
	}
	return offset + col, nil
}
