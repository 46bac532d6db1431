package fixture

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.lsp.dev/uri"
)

const responseNumFile = "RESPONSE_NUM.txt"

// responseIndex recovers the canned-response variant for a request by
// walking the document URI back up to the test root and reading the
// side-channel file the harness wrote there. Missing or malformed
// side-channel means variant 0.
func responseIndex(docURI uri.URI) int {
	root, ok := rootFromURI(docURI)
	if !ok {
		return 0
	}
	data, err := os.ReadFile(filepath.Join(root, responseNumFile))
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// rootFromURI finds the test root, the directory directly under the
// "lspresso-shot" staging dir that contains the document.
func rootFromURI(docURI uri.URI) (string, bool) {
	if !strings.HasPrefix(string(docURI), "file://") {
		return "", false
	}
	path := docURI.Filename()
	parts := strings.Split(path, string(filepath.Separator))
	for i, p := range parts {
		if p == "lspresso-shot" && i+1 < len(parts) {
			return string(filepath.Separator) + filepath.Join(parts[:i+2]...), true
		}
	}
	return "", false
}
