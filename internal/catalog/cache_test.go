package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingCatalog struct {
	*Static
	partCalls int
}

func (c *countingCatalog) Part(ctx context.Context, id int64) (Part, error) {
	c.partCalls++
	return c.Static.Part(ctx, id)
}

func TestCachedPart(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	source := &countingCatalog{Static: NewStatic()}
	source.Parts[7] = Part{ID: 7, PartNumber: "BRK-100", Description: "Bracket", Cost: 12.5, MarkupPercent: 20}

	cached := NewCached(source, client, time.Minute)
	ctx := context.Background()

	first, err := cached.Part(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "BRK-100", first.PartNumber)
	require.Equal(t, 1, source.partCalls)

	second, err := cached.Part(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, source.partCalls)

	// Expiry falls back to the source.
	mr.FastForward(2 * time.Minute)
	_, err = cached.Part(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 2, source.partCalls)
}

func TestCachedMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cached := NewCached(NewStatic(), client, time.Minute)
	_, err := cached.Labor(context.Background(), 99)
	require.Error(t, err)
}
