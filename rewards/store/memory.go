/*
Package store provides the in-memory Store implementation.

PURPOSE:
  Reference implementation of rewards.Store for tests and local dev.
  Holds everything in maps under one RWMutex and counts bulk queries so
  tests can assert the aggregator's bounded-query contract.

SEMANTICS MIRRORED FROM THE PRODUCTION STORES:
  - A filter Window matches a record when ANY of its date fields falls
    in range (the query-side prefilter; effective-date resolution stays
    with the caller).
  - TransitionRequest is conditional on Pending, under the write lock.
  - InsertPoint rejects a second entry with the same request
    back-reference.

SEE ALSO:
  - store/sqlite:  embedded production store
  - store/mongodb: document-store deployment
*/
package store

import (
	"context"
	"sync"
	"time"

	"github.com/vantage/points-engine/rewards"
)

// Memory implements rewards.Store in process memory.
type Memory struct {
	mu sync.RWMutex

	requests map[rewards.RequestID]*rewards.PointRequest
	points   map[rewards.PointID]*rewards.Point
	byReqRef map[rewards.RequestID]rewards.PointID
	legacy   map[rewards.CategoryID]*rewards.Category
	current  map[rewards.CategoryID]*rewards.Category
	users    map[rewards.UserID]*rewards.User
	config   *rewards.RewardConfig

	queries int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		requests: make(map[rewards.RequestID]*rewards.PointRequest),
		points:   make(map[rewards.PointID]*rewards.Point),
		byReqRef: make(map[rewards.RequestID]rewards.PointID),
		legacy:   make(map[rewards.CategoryID]*rewards.Category),
		current:  make(map[rewards.CategoryID]*rewards.Category),
		users:    make(map[rewards.UserID]*rewards.User),
	}
}

// QueryCount returns how many bulk queries (Find*/Sum*) have run.
// Tests use it to pin the aggregator's per-pass query bound.
func (m *Memory) QueryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

// ResetQueryCount zeroes the bulk query counter.
func (m *Memory) ResetQueryCount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = 0
}

// =============================================================================
// POINT REQUESTS
// =============================================================================

func (m *Memory) GetRequest(ctx context.Context, id rewards.RequestID) (*rewards.PointRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, rewards.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) FindRequests(ctx context.Context, f rewards.RequestFilter) ([]rewards.PointRequest, error) {
	m.mu.Lock()
	m.queries++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []rewards.PointRequest
	for _, r := range m.requests {
		if !matchRequest(r, f) {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *Memory) InsertRequest(ctx context.Context, r *rewards.PointRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *Memory) TransitionRequest(ctx context.Context, id rewards.RequestID, next rewards.RequestStatus, meta rewards.ProcessedMeta) (*rewards.PointRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, rewards.ErrRequestNotFound
	}
	if r.Status != rewards.StatusPending {
		return nil, &rewards.InvalidStateError{RequestID: id, Status: r.Status}
	}

	r.Status = next
	r.ProcessedBy = meta.By
	at := meta.At
	r.ProcessedDate = &at
	r.ProcessedDept = meta.Department
	r.ResponseNotes = meta.Notes
	if next == rewards.StatusApproved || next == rewards.StatusRejected {
		r.ResponseDate = &at
	}

	cp := *r
	return &cp, nil
}

// =============================================================================
// POINTS LEDGER
// =============================================================================

func (m *Memory) FindPoints(ctx context.Context, f rewards.PointFilter) ([]rewards.Point, error) {
	m.mu.Lock()
	m.queries++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []rewards.Point
	for _, p := range m.points {
		if !matchPoint(p, f) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *Memory) InsertPoint(ctx context.Context, p *rewards.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.RequestID != nil {
		if _, exists := m.byReqRef[*p.RequestID]; exists {
			return rewards.ErrDuplicateAward
		}
		m.byReqRef[*p.RequestID] = p.ID
	}
	cp := *p
	m.points[p.ID] = &cp
	return nil
}

func (m *Memory) SumLedgerPoints(ctx context.Context, f rewards.PointFilter) (map[rewards.UserID]int, error) {
	m.mu.Lock()
	m.queries++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	// The grouped sum windows on the entry's effective date, not the
	// any-date prefilter: grouped totals cannot be re-checked in
	// process, so the window must be exact here.
	sums := make(map[rewards.UserID]int)
	for _, p := range m.points {
		if len(f.UserIDs) > 0 && !containsUser(f.UserIDs, p.UserID) {
			continue
		}
		if len(f.CategoryIDs) > 0 && !containsCategory(f.CategoryIDs, p.CategoryID) {
			continue
		}
		if containsCategory(f.ExcludeCategoryIDs, p.CategoryID) {
			continue
		}
		if f.BonusOnly != nil && p.IsBonus != *f.BonusOnly {
			continue
		}
		if f.Window != nil && !rewards.InWindow(p, *f.Window, rewards.StandardPrecedence) {
			continue
		}
		sums[p.UserID] += p.Points
	}
	return sums, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (m *Memory) LegacyCategories(ctx context.Context) ([]rewards.Category, error) {
	m.mu.Lock()
	m.queries++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]rewards.Category, 0, len(m.legacy))
	for _, c := range m.legacy {
		out = append(out, *c)
	}
	return out, nil
}

func (m *Memory) CurrentCategories(ctx context.Context) ([]rewards.Category, error) {
	m.mu.Lock()
	m.queries++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]rewards.Category, 0, len(m.current))
	for _, c := range m.current {
		out = append(out, *c)
	}
	return out, nil
}

func (m *Memory) InsertLegacyCategory(ctx context.Context, c *rewards.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.legacy[c.ID] = &cp
	return nil
}

// InsertCurrentCategory seeds the current registry (tests, dev data).
func (m *Memory) InsertCurrentCategory(ctx context.Context, c *rewards.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.current[c.ID] = &cp
	return nil
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) GetUser(ctx context.Context, id rewards.UserID) (*rewards.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, rewards.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) FindUsers(ctx context.Context, f rewards.UserFilter) ([]rewards.User, error) {
	m.mu.Lock()
	m.queries++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []rewards.User
	for _, u := range m.users {
		if len(f.Roles) > 0 && !containsRole(f.Roles, u.Role) {
			continue
		}
		if len(f.Grades) > 0 && !containsGrade(f.Grades, u.Grade) {
			continue
		}
		if f.Department != "" && u.Department != f.Department {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (m *Memory) InsertUser(ctx context.Context, u *rewards.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *u
	m.users[u.ID] = &cp
	return nil
}

// =============================================================================
// REWARD CONFIG
// =============================================================================

func (m *Memory) LoadRewardConfig(ctx context.Context) (*rewards.RewardConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return nil, rewards.ErrConfigMissing
	}
	cp := *m.config
	return &cp, nil
}

func (m *Memory) SaveRewardConfig(ctx context.Context, c *rewards.RewardConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.config = &cp
	return nil
}

// =============================================================================
// FILTER MATCHING
// =============================================================================

func matchRequest(r *rewards.PointRequest, f rewards.RequestFilter) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if len(f.UserIDs) > 0 && !containsUser(f.UserIDs, r.UserID) {
		return false
	}
	if len(f.CategoryIDs) > 0 && !containsCategory(f.CategoryIDs, r.CategoryID) {
		return false
	}
	if containsCategory(f.ExcludeCategoryIDs, r.CategoryID) {
		return false
	}
	if f.BonusOnly != nil && r.IsBonus != *f.BonusOnly {
		return false
	}
	if f.Window != nil && !anyDateIn(r.CandidateDates(), *f.Window) {
		return false
	}
	return true
}

func matchPoint(p *rewards.Point, f rewards.PointFilter) bool {
	if len(f.UserIDs) > 0 && !containsUser(f.UserIDs, p.UserID) {
		return false
	}
	if len(f.CategoryIDs) > 0 && !containsCategory(f.CategoryIDs, p.CategoryID) {
		return false
	}
	if containsCategory(f.ExcludeCategoryIDs, p.CategoryID) {
		return false
	}
	if f.BonusOnly != nil && p.IsBonus != *f.BonusOnly {
		return false
	}
	if f.Window != nil && !anyDateIn(p.CandidateDates(), *f.Window) {
		return false
	}
	return true
}

// anyDateIn implements the query-side prefilter: a record passes when
// any populated date field is in range.
func anyDateIn(dates [4]*time.Time, w rewards.Window) bool {
	for _, d := range dates {
		if d != nil && w.Contains(*d) {
			return true
		}
	}
	return false
}

func containsUser(ids []rewards.UserID, id rewards.UserID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsCategory(ids []rewards.CategoryID, id rewards.CategoryID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsRole(roles []rewards.Role, r rewards.Role) bool {
	for _, v := range roles {
		if v == r {
			return true
		}
	}
	return false
}

func containsGrade(grades []rewards.Grade, g rewards.Grade) bool {
	for _, v := range grades {
		if v == g {
			return true
		}
	}
	return false
}
