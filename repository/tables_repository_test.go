package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrico/tablepipe/pipeline"
)

func TestTablesRepository(t *testing.T) {
	repo := NewTablesRepository()
	people := pipeline.New(nil, pipeline.WithName("people"))
	require.NoError(t, repo.Add("people", people))
	require.NoError(t, repo.Add("metrics", pipeline.New(nil, pipeline.WithName("metrics"))))
	assert.ErrorIs(t, repo.Add("people", people), ErrTableExists)

	e, err := repo.Get("people")
	require.NoError(t, err)
	assert.Same(t, people, e)
	_, err = repo.Get("ghost")
	assert.ErrorIs(t, err, ErrTableNotFound)

	assert.Equal(t, []string{"metrics", "people"}, repo.Names())

	require.NoError(t, repo.Remove("metrics"))
	assert.ErrorIs(t, repo.Remove("metrics"), ErrTableNotFound)
	assert.Equal(t, []string{"people"}, repo.Names())

	repo.Close()
	assert.Empty(t, repo.Names())
}
