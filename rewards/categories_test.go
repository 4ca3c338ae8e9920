package rewards_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vantage/points-engine/rewards"
)

// =============================================================================
// REGISTRY RECONCILIATION
// =============================================================================

func TestBuildCatalog_MergesByName(t *testing.T) {
	// GIVEN: The same logical category under different ids in each registry
	// WHEN: Building the catalog
	// THEN: One merged entry holds the union of ids

	legacy := []rewards.Category{
		{ID: "leg-1", Name: "Mentoring", Code: "mentoring_old"},
	}
	current := []rewards.Category{
		{ID: "cur-1", Name: "Mentoring", Code: "mentoring"},
		{ID: "cur-2", Name: "Certifications", Code: "certs"},
	}

	c := rewards.BuildCatalog(legacy, current)

	m, ok := c.Merged["Mentoring"]
	assert.True(t, ok)
	assert.ElementsMatch(t, []rewards.CategoryID{"leg-1", "cur-1"}, m.IDs)
	assert.Len(t, c.Merged, 2)
}

func TestBuildCatalog_CurrentCodeWins(t *testing.T) {
	legacy := []rewards.Category{{ID: "leg-1", Name: "Mentoring", Code: "old_code"}}
	current := []rewards.Category{{ID: "cur-1", Name: "Mentoring", Code: "new_code"}}

	c := rewards.BuildCatalog(legacy, current)
	assert.Equal(t, "new_code", c.Merged["Mentoring"].Code)
}

func TestBuildCatalog_BlankCurrentCodeKeepsLegacy(t *testing.T) {
	legacy := []rewards.Category{{ID: "leg-1", Name: "Mentoring", Code: "old_code"}}
	current := []rewards.Category{{ID: "cur-1", Name: "Mentoring"}}

	c := rewards.BuildCatalog(legacy, current)
	assert.Equal(t, "old_code", c.Merged["Mentoring"].Code)
}

func TestBuildCatalog_SkipsBlankNames(t *testing.T) {
	legacy := []rewards.Category{{ID: "leg-1", Name: ""}}
	current := []rewards.Category{{ID: "cur-1", Name: ""}}

	c := rewards.BuildCatalog(legacy, current)
	assert.Empty(t, c.Merged)
	assert.Equal(t, "Unknown", c.NameFor("leg-1"))
}

func TestBuildCatalog_Idempotent(t *testing.T) {
	legacy := []rewards.Category{{ID: "leg-1", Name: "Mentoring", Code: "a"}}
	current := []rewards.Category{{ID: "cur-1", Name: "Mentoring", Code: "b"}}

	first := rewards.BuildCatalog(legacy, current)
	second := rewards.BuildCatalog(legacy, current)

	assert.Equal(t, first.Merged, second.Merged)
	assert.Equal(t, first.IDToName, second.IDToName)
}

// =============================================================================
// LOOKUPS
// =============================================================================

func TestCatalog_Lookups(t *testing.T) {
	legacy := []rewards.Category{
		{ID: "leg-util", Name: "Utilization", Code: rewards.CodeUtilizationBillable},
		{ID: "leg-bonus", Name: "Bonus Points", Code: rewards.CodeBonusPoints, IsBonus: true},
	}
	current := []rewards.Category{
		{ID: "cur-util", Name: "Utilization", Code: rewards.CodeUtilizationBillable},
	}

	c := rewards.BuildCatalog(legacy, current)

	assert.ElementsMatch(t, []rewards.CategoryID{"leg-util", "cur-util"}, c.UtilizationIDs())
	assert.Equal(t, []rewards.CategoryID{"leg-bonus"}, c.IDsForCode(rewards.CodeBonusPoints))
	assert.Equal(t, "Utilization", c.NameFor("cur-util"))
	assert.True(t, c.IsBonusCategory("leg-bonus"))
	assert.False(t, c.IsBonusCategory("leg-util"))
	assert.Nil(t, c.IDsFor("Nonexistent"))
}
