package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPipelineEmptyPath(t *testing.T) {
	t.Parallel()

	opts, err := loadPipeline("")
	require.NoError(t, err)
	assert.Empty(t, opts.Include)
	assert.Empty(t, opts.Exclude)
}

func TestLoadPipelineParsesYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
include:
  - '\.out$'
exclude:
  - '\.tmp$'
meta:
  output: true
`), 0o644))

	opts, err := loadPipeline(path)
	require.NoError(t, err)
	require.Len(t, opts.Include, 1)
	require.Len(t, opts.Exclude, 1)
	assert.True(t, opts.Include[0].MatchString("result.out"))
	assert.True(t, opts.Exclude[0].MatchString("scratch.tmp"))
	assert.Equal(t, true, opts.Meta["output"])
}
