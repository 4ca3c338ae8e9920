/*
categories.go - Reconciliation of the two category registries

PURPOSE:
  Categories were migrated between two physical stores (a legacy
  registry and the current one) without ever being fully deduplicated:
  the same logical category can exist under different ids in each.
  Every consumer that needs "all ids meaning Mentoring" goes through
  this reconciliation or silently under-counts historical data.

ALGORITHM:
  Iterate the legacy list first, seeding the map by name; iterate the
  current list, unioning ids into the existing name entry or creating a
  new one. The current registry's code wins on conflict (later write
  wins). Blank names contribute nothing. No error conditions.

USAGE:
  Build the Catalog ONCE per aggregation pass and pass it by reference;
  it is an immutable lookup table, not something to rebuild per record.
*/
package rewards

import "context"

// =============================================================================
// CATALOG - merged category namespace keyed by name
// =============================================================================

// MergedCategory is one logical category: a name, the winning code, and
// the union of all physical ids that mean it.
type MergedCategory struct {
	Name string
	Code string
	IDs  []CategoryID
}

// Catalog is the reconciled category namespace.
type Catalog struct {
	Merged   map[string]MergedCategory
	IDToName map[CategoryID]string

	bonusIDs map[CategoryID]bool
}

// BuildCatalog merges the legacy and current registries. Idempotent:
// merging the same inputs twice yields the same maps.
func BuildCatalog(legacy, current []Category) *Catalog {
	c := &Catalog{
		Merged:   make(map[string]MergedCategory),
		IDToName: make(map[CategoryID]string),
		bonusIDs: make(map[CategoryID]bool),
	}

	for _, cat := range legacy {
		if cat.Name == "" {
			continue
		}
		c.Merged[cat.Name] = MergedCategory{
			Name: cat.Name,
			Code: cat.Code,
			IDs:  []CategoryID{cat.ID},
		}
		c.IDToName[cat.ID] = cat.Name
		if cat.IsBonus {
			c.bonusIDs[cat.ID] = true
		}
	}

	for _, cat := range current {
		if cat.Name == "" {
			continue
		}
		if existing, ok := c.Merged[cat.Name]; ok {
			existing.IDs = append(existing.IDs, cat.ID)
			if cat.Code != "" {
				existing.Code = cat.Code
			}
			c.Merged[cat.Name] = existing
		} else {
			c.Merged[cat.Name] = MergedCategory{
				Name: cat.Name,
				Code: cat.Code,
				IDs:  []CategoryID{cat.ID},
			}
		}
		c.IDToName[cat.ID] = cat.Name
		if cat.IsBonus {
			c.bonusIDs[cat.ID] = true
		}
	}

	return c
}

// LoadCatalog fetches both registries from the store and reconciles
// them. The two reads are the only category queries an aggregation
// pass makes.
func LoadCatalog(ctx context.Context, s Store) (*Catalog, error) {
	legacy, err := s.LegacyCategories(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.CurrentCategories(ctx)
	if err != nil {
		return nil, err
	}
	return BuildCatalog(legacy, current), nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// NameFor maps a physical id back to the logical category name.
// Unknown ids report as "Unknown" rather than failing the record.
func (c *Catalog) NameFor(id CategoryID) string {
	if name, ok := c.IDToName[id]; ok {
		return name
	}
	return "Unknown"
}

// IDsFor returns every physical id meaning the named logical category.
func (c *Catalog) IDsFor(name string) []CategoryID {
	if m, ok := c.Merged[name]; ok {
		return m.IDs
	}
	return nil
}

// IDsForCode returns every physical id whose logical category carries
// the given code.
func (c *Catalog) IDsForCode(code string) []CategoryID {
	var ids []CategoryID
	for _, m := range c.Merged {
		if m.Code == code {
			ids = append(ids, m.IDs...)
		}
	}
	return ids
}

// UtilizationIDs returns the ids of the utilization/billable metric
// category across both registries.
func (c *Catalog) UtilizationIDs() []CategoryID {
	return c.IDsForCode(CodeUtilizationBillable)
}

// IsBonusCategory reports whether the physical category is flagged as a
// bonus category. Used as a fallback when a record itself is not
// flagged is_bonus.
func (c *Catalog) IsBonusCategory(id CategoryID) bool {
	return c.bonusIDs[id]
}
