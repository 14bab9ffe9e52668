package codex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusweave/nexus/server/internal/model"
)

func strptr(s string) *string { return &s }

func TestMerge_EmptyUpdatesIsIdentity(t *testing.T) {
	existing := []model.CodexEntry{
		{ID: "1", Name: "Mara", Type: "npc", Description: "Smuggler."},
	}
	merged := Merge(existing, nil)
	assert.Equal(t, existing, merged)

	merged = Merge(existing, []model.CodexUpdate{})
	assert.Equal(t, existing, merged)
}

func TestMerge_IntoEmptyCodex(t *testing.T) {
	merged := Merge(nil, []model.CodexUpdate{
		{Name: "Vault of Ash", Type: strptr("location"), Description: strptr("Sealed.")},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, "Vault of Ash", merged[0].Name)
	assert.Equal(t, "location", merged[0].Type)
	assert.NotEmpty(t, merged[0].ID)
}

func TestMerge_NameMatchOverlaysWithoutGrowth(t *testing.T) {
	existing := []model.CodexEntry{
		{ID: "1", Name: "Mara", Type: "npc", Description: "Smuggler.", Status: "alive"},
		{ID: "2", Name: "Vault", Type: "location", Description: "Sealed."},
	}
	merged := Merge(existing, []model.CodexUpdate{
		{Name: "Mara", Status: strptr("dead")},
	})
	require.Len(t, merged, 2)
	assert.Equal(t, "dead", merged[0].Status)
	// Absent fields are preserved.
	assert.Equal(t, "npc", merged[0].Type)
	assert.Equal(t, "Smuggler.", merged[0].Description)
	assert.Equal(t, "1", merged[0].ID)
}

func TestMerge_NameMatchIsCaseSensitive(t *testing.T) {
	existing := []model.CodexEntry{{ID: "1", Name: "Mara"}}
	merged := Merge(existing, []model.CodexUpdate{{Name: "mara", Type: strptr("npc")}})
	require.Len(t, merged, 2)
	assert.Equal(t, "mara", merged[1].Name)
}

func TestMerge_AppendsPreserveOrderAndProvidedID(t *testing.T) {
	existing := []model.CodexEntry{{ID: "1", Name: "A"}}
	merged := Merge(existing, []model.CodexUpdate{
		{Name: "B", ID: "fixed-id"},
		{Name: "C"},
	})
	require.Len(t, merged, 3)
	assert.Equal(t, "A", merged[0].Name)
	assert.Equal(t, "B", merged[1].Name)
	assert.Equal(t, "fixed-id", merged[1].ID)
	assert.Equal(t, "C", merged[2].Name)
}

func TestMerge_DuplicateUpdateNamesCollapse(t *testing.T) {
	merged := Merge(nil, []model.CodexUpdate{
		{Name: "B", Description: strptr("first")},
		{Name: "B", Description: strptr("second")},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, "second", merged[0].Description)
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	existing := []model.CodexEntry{{ID: "1", Name: "Mara", Status: "alive"}}
	_ = Merge(existing, []model.CodexUpdate{{Name: "Mara", Status: strptr("dead")}})
	assert.Equal(t, "alive", existing[0].Status)
}
