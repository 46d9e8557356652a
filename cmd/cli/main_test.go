package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopattern/domain/discovery"
)

func TestWithContexts(t *testing.T) {
	schema := discovery.Schema{
		Outcome: "y",
		Features: []discovery.Feature{
			{Name: "a", Kind: discovery.FeatureContinuous},
			{Name: "channel", Kind: discovery.FeatureCategorical},
		},
	}
	got := withContexts(schema, []string{"channel"})
	assert.Equal(t, []discovery.Feature{{Name: "a", Kind: discovery.FeatureContinuous}}, got.Features)
	assert.Equal(t, []string{"channel"}, got.Contexts)
	assert.Len(t, schema.Features, 2, "input schema is not modified")
}

func TestRender(t *testing.T) {
	run := &discovery.AnalysisRun{Outcome: "y", Status: discovery.StatusInsufficientData, Patterns: []discovery.ValidatedPattern{}}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, run, "json"))
	assert.Contains(t, buf.String(), `"patterns": []`)

	buf.Reset()
	require.NoError(t, render(&buf, run, "markdown"))
	assert.True(t, strings.HasPrefix(buf.String(), "# Pattern discovery: y"))

	assert.Error(t, render(&buf, run, "pdf"))
}

func TestSchemaCommand(t *testing.T) {
	var data strings.Builder
	data.WriteString("spend,region,channel,revenue\n")
	for i := 0; i < 40; i++ {
		region := []string{"north", "south"}[i%2]
		channel := []string{"web", "store"}[(i/2)%2]
		fmt.Fprintf(&data, "%s,%s,%s,%d\n", strconv.FormatFloat(float64(i)*1.5, 'f', -1, 64), region, channel, 100+i)
	}
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(data.String()), 0o600))

	cmd := newSchemaCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path, "--outcome", "revenue", "--context", "channel"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "outcome: revenue")
	assert.Contains(t, out.String(), "name: spend")
	assert.Contains(t, out.String(), "kind: continuous")
	assert.Contains(t, out.String(), "- channel")
	assert.NotContains(t, out.String(), "name: channel")
}
