package foldertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"foldertree/internal/domain/models"
)

func TestOrderChildren_Root(t *testing.T) {
	external := []models.ChildRef{
		{ID: SharedFolderID, Name: "Shared folders"},
		{ID: PrivateFolderID, Name: "Private folders"},
		{ID: PublicFolderID, Name: "Public folders"},
	}
	virtual := []models.ChildRef{
		{ID: "5", Name: "beta"},
		{ID: "4", Name: "Alpha"},
		{ID: "7", Name: "Unified Inbox"},
	}

	got := OrderChildren(models.RootID, language.English, virtual, external)
	assert.Equal(t, []string{"1", "2", "3", "7", "4", "5"}, got)
}

func TestOrderChildren_RootIgnoresInputOrder(t *testing.T) {
	children := []models.ChildRef{
		{ID: "4", Name: "Zeta"},
		{ID: "7", Name: "Unified Inbox"},
		{ID: "3", Name: "Shared"},
		{ID: "2", Name: "Public"},
		{ID: "1", Name: "Private"},
	}
	want := []string{"1", "2", "3", "7", "4"}

	for shift := range children {
		input := append(append([]models.ChildRef{}, children[shift:]...), children[:shift]...)
		assert.Equal(t, want, OrderChildren(models.RootID, language.English, input, nil))
		assert.Equal(t, want, OrderChildren(models.RootID, language.English, nil, input))
	}
}

func TestOrderChildren_RootTiesUseNaturalIDs(t *testing.T) {
	virtual := []models.ChildRef{
		{ID: "u:10", Name: "Same"},
		{ID: "u:9", Name: "same"},
	}
	got := OrderChildren(models.RootID, language.English, virtual, nil)
	assert.Equal(t, []string{"u:9", "u:10"}, got)
}

func TestOrderChildren_MergesByName(t *testing.T) {
	external := []models.ChildRef{
		{ID: "e1", Name: "banana"},
	}
	virtual := []models.ChildRef{
		{ID: "v2", Name: "banana"},
		{ID: "v1", Name: "Apple"},
		{ID: "v3", Name: "BANANA"},
		{ID: "e1", Name: "banana"},
	}

	got := OrderChildren("u:parent", language.English, virtual, external)
	assert.Equal(t, []string{"v1", "e1", "v2", "v3"}, got)
}

func TestOrderChildren_AccentsAreSignificant(t *testing.T) {
	virtual := []models.ChildRef{
		{ID: "b", Name: "resume"},
		{ID: "a", Name: "résumé"},
		{ID: "c", Name: "Resume"},
	}
	got := OrderChildren("u:parent", language.French, virtual, nil)
	assert.Equal(t, []string{"b", "c", "a"}, got)
}

func TestOrderChildren_Empty(t *testing.T) {
	assert.Empty(t, OrderChildren("u:parent", language.English, nil, nil))
	assert.Empty(t, OrderChildren(models.RootID, language.English, nil, nil))
}
