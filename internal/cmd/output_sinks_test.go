package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npmwatch/npmwatch/internal/output"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "nightly-watch", sanitizeFilename(" Nightly Watch "))
	assert.Equal(t, "scope-pkg", sanitizeFilename("@scope/pkg"))
	assert.Equal(t, "output", sanitizeFilename("..."))
}

func TestOutDirPath(t *testing.T) {
	path := outDirPath("/tmp/out", "workflows/Nightly Run.yaml", output.FormatMarkdown)
	assert.Equal(t, filepath.Join("/tmp/out", "nightly-run.md"), path)

	path = outDirPath("/tmp/out", "-", output.FormatJSON)
	assert.Equal(t, filepath.Join("/tmp/out", "output.json"), path)
}

func TestWriteRenderedCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.txt")
	require.NoError(t, writeRendered(path, "hello"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
