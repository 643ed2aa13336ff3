package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Presto-io/symfix/internal/escape"
)

func TestManifest(t *testing.T) {
	var m struct {
		Name    string      `json:"name"`
		Version string      `json:"version"`
		Rule    escape.Rule `json:"rule"`
	}
	require.NoError(t, json.Unmarshal([]byte(manifestJSON), &m))

	assert.Equal(t, "symfix", m.Name)
	assert.NotEmpty(t, m.Version)
	assert.Equal(t, escape.DefaultRule, m.Rule)
}

func TestExampleIsCorrectable(t *testing.T) {
	res := escape.Correct(exampleTS)

	assert.Equal(t, 3, res.Changed)
	assert.Equal(t, 5, res.Matched)
	assert.Empty(t, res.Diagnostics)
	assert.Contains(t, res.Document, `cmd: '\\usepackage{fontawesome5}'`)
	assert.Equal(t, 5, strings.Count(res.Document, `cmd: '\\fa`))

	again := escape.Correct(res.Document)
	assert.Zero(t, again.Changed)
	assert.Equal(t, res.Document, again.Document)
}
