package counters_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfreporter/internal/counters"
	"perfreporter/internal/counters/counterstest"
)

func TestWithSynthetic_Expand(t *testing.T) {
	inner := counterstest.New()
	inner.Add(`\Memory\Available MBytes`, counters.TypeNumberOfItems64, 100)
	src := counters.WithSynthetic(inner)

	got, err := src.ExpandWildcard(`\Synthetic\*`)
	require.NoError(t, err)
	assert.Equal(t, []string{`\Synthetic\Used MBytes`}, got)

	got, err = src.ExpandWildcard(`\synthetic\used mbytes`)
	require.NoError(t, err)
	assert.Equal(t, []string{`\Synthetic\Used MBytes`}, got)

	got, err = src.ExpandWildcard(`\Synthetic(*)\Used MBytes`)
	require.NoError(t, err)
	assert.Empty(t, got)

	// everything else is delegated
	got, err = src.ExpandWildcard(`\Memory\Available MBytes`)
	require.NoError(t, err)
	assert.Equal(t, []string{`\Memory\Available MBytes`}, got)
}

func TestWithSynthetic_ExistsAndType(t *testing.T) {
	src := counters.WithSynthetic(counterstest.New())

	ok, err := src.Exists(`\Synthetic\Used MBytes`)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = src.Exists(`\Synthetic\Free MBytes`)
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := src.Parse(`\Synthetic\Used MBytes`)
	require.NoError(t, err)
	kind, err := src.CounterType(p)
	require.NoError(t, err)
	assert.Equal(t, counters.TypeNumberOfItems64, kind)
}

func TestWithSynthetic_UsedMBytesReadsThroughInner(t *testing.T) {
	inner := counterstest.New()
	inner.Add(`\Memory\Available MBytes`, counters.TypeNumberOfItems64, 0)
	src := counters.WithSynthetic(inner)

	r, err := src.OpenReader(counters.Path{Object: "Synthetic", Counter: "Used MBytes"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.LiveReaders(`\Memory\Available MBytes`))

	total, err := r.Value()
	require.NoError(t, err)
	require.Greater(t, total, 0.0)

	inner.SetValue(`\Memory\Available MBytes`, 10)
	used, err := r.Value()
	require.NoError(t, err)
	assert.Equal(t, total-10, used)

	require.NoError(t, r.Close())
	assert.Equal(t, 0, inner.LiveReaders(`\Memory\Available MBytes`))
}
