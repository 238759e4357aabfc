package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, user string, v ...float32) Record {
	return Record{ID: id, Vector: v, Metadata: Metadata{ConversationID: id, UserID: user}}
}

func TestMemory_QueryRanksByCosineAndFiltersUser(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []Record{
		rec("near", "u1", 1, 0),
		rec("far", "u1", 0, 1),
		rec("mid", "u1", 1, 1),
		rec("other", "u2", 1, 0),
	}))

	got, err := idx.Query(ctx, []float32{1, 0}, 10, Filter{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "near", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "far", got[2].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.InDelta(t, 0.0, got[2].Score, 1e-6)
}

func TestMemory_UpsertReplacesByID(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []Record{rec("a", "u", 0, 1)}))
	require.NoError(t, idx.Upsert(ctx, []Record{rec("a", "u", 1, 0)}))

	got, err := idx.Query(ctx, []float32{1, 0}, 5, Filter{UserID: "u"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
}

func TestMemory_TopK(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []Record{rec("a", "u", 1), rec("b", "u", 1), rec("c", "u", 1)}))

	got, err := idx.Query(ctx, []float32{1}, 2, Filter{UserID: "u"})
	require.NoError(t, err)
	// equal scores keep insertion order
	assert.Equal(t, []string{"a", "b"}, []string{got[0].ID, got[1].ID})

	got, err = idx.Query(ctx, []float32{1}, 0, Filter{UserID: "u"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "conv-1-msg-0", RecordID("conv-1", 0))
	assert.Equal(t, "abc-msg-12", RecordID("abc", 12))
}
