package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceResolvesBareDependencyReference(t *testing.T) {
	e := New()
	ctx := map[string]interface{}{
		"postgres": map[string]interface{}{"host": "db1", "port": "5432"},
	}

	got, err := e.Replace("{{ postgres.host }}:{{ postgres.port }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "db1:5432", got)
}

func TestReplaceErrorsOnMissingReference(t *testing.T) {
	e := New()
	_, err := e.Replace("{{ cache.host }}", map[string]interface{}{})
	require.Error(t, err)
}

func TestReplaceFallsBackToGoTemplateForSprigExpression(t *testing.T) {
	e := New()
	ctx := map[string]interface{}{"tier": "prod"}

	got, err := e.Replace(`{{ eq .tier "prod" }}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestReplacePassesThroughNonStringValues(t *testing.T) {
	e := New()
	got, err := e.Replace(42, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestMergeContextsLaterOverridesEarlier(t *testing.T) {
	a := map[string]interface{}{"x": "a"}
	b := map[string]interface{}{"x": "b", "y": "b"}

	merged := MergeContexts(a, b)
	assert.Equal(t, "b", merged["x"])
	assert.Equal(t, "b", merged["y"])
}
