package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bazaar/pkg/types"
)

func tagNames(tags []types.Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}

func TestSeedTags(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		check func(t *testing.T, b *Backend)
	}{
		{
			name: "seeds the default vocabulary in order",
			check: func(t *testing.T, b *Backend) {
				tags, err := b.ListTags(ctx)
				require.NoError(t, err)
				assert.Equal(t, types.DefaultTags, tagNames(tags))
				for i, tag := range tags {
					assert.Equal(t, int64(i+1), tag.ID, "tag %s", tag.Name)
				}
			},
		},
		{
			name: "reseeding skips existing names",
			check: func(t *testing.T, b *Backend) {
				require.NoError(t, seedTags(ctx, b.db, types.DefaultTags))
				require.NoError(t, seedTags(ctx, b.db, []string{"weapon", "armor"}))

				tags, err := b.ListTags(ctx)
				require.NoError(t, err)
				assert.Equal(t, types.DefaultTags, tagNames(tags))
			},
		},
		{
			name: "new names are appended after existing tags",
			check: func(t *testing.T, b *Backend) {
				require.NoError(t, seedTags(ctx, b.db, []string{"weapon", "herb"}))

				tags, err := b.ListTags(ctx)
				require.NoError(t, err)
				require.Len(t, tags, len(types.DefaultTags)+1)
				last := tags[len(tags)-1]
				assert.Equal(t, "herb", last.Name)
				assert.Greater(t, last.ID, tags[len(tags)-2].ID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setupBackend(t)
			tt.check(t, b)
		})
	}
}

func TestSeedTagsFromConfig(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{
		DBPath: filepath.Join(t.TempDir(), "market.db"),
		Tags:   []string{"herb", "ore", "herb"},
	}))
	t.Cleanup(func() { b.Detach() })

	tags, err := b.ListTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"herb", "ore"}, tagNames(tags))
}
