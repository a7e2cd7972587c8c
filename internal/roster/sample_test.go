package roster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

func TestSampleKindsMatchIDConvention(t *testing.T) {
	convs := Sample(time.Now())
	require.Len(t, convs, 15)

	ids := make(map[string]bool)
	for _, c := range convs {
		id := c.Info().ID
		assert.False(t, ids[id], "duplicate id %s", id)
		ids[id] = true
		assert.Equal(t, domain.KindFromID(id), c.Kind(), id)
	}
}

func TestStaticReturnsCopies(t *testing.T) {
	src := NewStatic(Sample(time.Now()))

	first, err := src.Conversations(context.Background())
	require.NoError(t, err)
	first[0].Info().UnreadCount = 99

	second, err := src.Conversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, second[0].Info().UnreadCount)
}
