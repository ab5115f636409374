package ids_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/ids"
)

func TestGenerators(t *testing.T) {
	g, err := ids.New("uuid")
	require.NoError(t, err)
	_, err = uuid.Parse(g.NewID())
	assert.NoError(t, err)

	g, err = ids.New("ulid")
	require.NoError(t, err)
	a, b := g.NewID(), g.NewID()
	_, err = ulid.ParseStrict(a)
	assert.NoError(t, err)
	assert.Less(t, a, b)

	_, err = ids.New("snowflake")
	assert.Error(t, err)
}

func TestSequence(t *testing.T) {
	s := &ids.Sequence{Prefix: "task"}
	assert.Equal(t, "task-1", s.NewID())
	assert.Equal(t, "task-2", s.NewID())
}
