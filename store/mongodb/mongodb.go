/*
Package mongodb provides the MongoDB-backed rewards.Store.

PURPOSE:
  Document-store deployment of the engine, for installs whose HR data
  already lives in MongoDB. Same contract as store/sqlite.

COLLECTIONS:
  points_request: submitted requests with their status and dates
  points:         awarded ledger entries
  categories:     legacy category registry (name + code)
  hr_categories:  current category registry (name + category_code)
  users:          employee records
  reward_config:  single configuration document

QUERY SHAPES:
  - Bulk filters compile to $in / $nin category sets and an $or across
    the date fields for the window prefilter.
  - TransitionRequest is a FindOneAndUpdate conditioned on status
    Pending: the database serializes concurrent validators.
  - SumLedgerPoints pushes grouping down as a $match + $group pipeline
    over the points collection, windowed on the effective date
    ($ifNull: event_date, award_date).
  - EnsureIndexes installs a unique partial index on points.request_id
    so one request can never produce two ledger entries.
*/
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vantage/points-engine/rewards"
)

const (
	collRequests        = "points_request"
	collPoints          = "points"
	collLegacyCats      = "categories"
	collCurrentCats     = "hr_categories"
	collUsers           = "users"
	collRewardConfig    = "reward_config"
	rewardConfigDocName = "reward_config"
)

// Store implements rewards.Store over a mongo database.
type Store struct {
	db *mongo.Database
}

// New connects to the given URI and returns a store over dbName.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := &Store{db: client.Database(dbName)}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// EnsureIndexes installs the indexes the query shapes rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	// CRITICAL: unique partial index enforcing one ledger entry per
	// originating request.
	_, err := s.db.Collection(collPoints).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().
				SetName("idx_points_request_ref").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"request_id": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "award_date", Value: 1}},
			Options: options.Index().SetName("idx_points_user_award_date"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create points indexes: %w", err)
	}

	_, err = s.db.Collection(collRequests).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_requests_user_status"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "request_date", Value: 1}},
			Options: options.Index().SetName("idx_requests_status_request_date"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create request indexes: %w", err)
	}
	return nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type requestDoc struct {
	ID               string             `bson:"_id"`
	UserID           string             `bson:"user_id"`
	CategoryID       string             `bson:"category_id"`
	Points           int                `bson:"points"`
	IsBonus          bool               `bson:"is_bonus"`
	Status           string             `bson:"status"`
	EventDate        *time.Time         `bson:"event_date,omitempty"`
	RequestDate      *time.Time         `bson:"request_date,omitempty"`
	AwardDate        *time.Time         `bson:"award_date,omitempty"`
	ResponseDate     *time.Time         `bson:"response_date,omitempty"`
	UtilizationValue *float64           `bson:"utilization_value,omitempty"`
	Submission       map[string]float64 `bson:"submission,omitempty"`
	ProcessedBy      string             `bson:"processed_by,omitempty"`
	ProcessedDate    *time.Time         `bson:"processed_date,omitempty"`
	ProcessedDept    string             `bson:"processed_dept,omitempty"`
	ResponseNotes    string             `bson:"response_notes,omitempty"`
	ManagerNotes     string             `bson:"manager_notes,omitempty"`
	AttachmentID     string             `bson:"attachment_id,omitempty"`
	AttachmentName   string             `bson:"attachment_name,omitempty"`
	HasAttachment    bool               `bson:"has_attachment"`
	CreatedAt        time.Time          `bson:"created_at"`
}

type pointDoc struct {
	ID         string     `bson:"_id"`
	UserID     string     `bson:"user_id"`
	CategoryID string     `bson:"category_id"`
	Points     int        `bson:"points"`
	IsBonus    bool       `bson:"is_bonus"`
	AwardDate  *time.Time `bson:"award_date,omitempty"`
	EventDate  *time.Time `bson:"event_date,omitempty"`
	AwardedBy  string     `bson:"awarded_by,omitempty"`
	Notes      string     `bson:"notes,omitempty"`
	RequestID  *string    `bson:"request_id,omitempty"`
}

type categoryDoc struct {
	ID            string         `bson:"_id"`
	Name          string         `bson:"name"`
	Code          string         `bson:"code,omitempty"`
	CategoryCode  string         `bson:"category_code,omitempty"`
	Department    string         `bson:"department,omitempty"`
	Active        bool           `bson:"active"`
	IsBonus       bool           `bson:"is_bonus"`
	GradePoints   map[string]int `bson:"grade_points,omitempty"`
	GradeLimits   map[string]int `bson:"grade_limits,omitempty"`
	PointsPerUnit int            `bson:"points_per_unit,omitempty"`
}

type userDoc struct {
	ID         string  `bson:"_id"`
	Name       string  `bson:"name"`
	Email      string  `bson:"email,omitempty"`
	Grade      string  `bson:"grade,omitempty"`
	Department string  `bson:"department,omitempty"`
	Role       string  `bson:"role"`
	ManagerID  *string `bson:"manager_id,omitempty"`
}

type configDoc struct {
	Name   string               `bson:"_id"`
	Config rewards.RewardConfig `bson:"config"`
}

// =============================================================================
// POINT REQUESTS
// =============================================================================

func (s *Store) GetRequest(ctx context.Context, id rewards.RequestID) (*rewards.PointRequest, error) {
	var doc requestDoc
	err := s.db.Collection(collRequests).FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, rewards.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toRequest(), nil
}

func (s *Store) FindRequests(ctx context.Context, f rewards.RequestFilter) ([]rewards.PointRequest, error) {
	cursor, err := s.db.Collection(collRequests).Find(ctx, requestQuery(f))
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []requestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]rewards.PointRequest, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toRequest())
	}
	return out, nil
}

func (s *Store) InsertRequest(ctx context.Context, r *rewards.PointRequest) error {
	_, err := s.db.Collection(collRequests).InsertOne(ctx, fromRequest(r))
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func (s *Store) TransitionRequest(ctx context.Context, id rewards.RequestID, next rewards.RequestStatus, meta rewards.ProcessedMeta) (*rewards.PointRequest, error) {
	at := meta.At.UTC()

	var doc requestDoc
	err := s.db.Collection(collRequests).FindOneAndUpdate(ctx,
		bson.M{"_id": string(id), "status": string(rewards.StatusPending)},
		bson.M{"$set": bson.M{
			"status":         string(next),
			"processed_by":   string(meta.By),
			"processed_date": at,
			"processed_dept": meta.Department,
			"response_notes": meta.Notes,
			"response_date":  at,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)

	if errors.Is(err, mongo.ErrNoDocuments) {
		// Missing or no longer pending; fetch to tell apart.
		current, err := s.GetRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &rewards.InvalidStateError{RequestID: id, Status: current.Status}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition request: %w", err)
	}
	return doc.toRequest(), nil
}

func requestQuery(f rewards.RequestFilter) bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = string(f.Status)
	}
	if len(f.UserIDs) > 0 {
		q["user_id"] = bson.M{"$in": userStrings(f.UserIDs)}
	}
	if cat := categoryClause(f.CategoryIDs, f.ExcludeCategoryIDs); cat != nil {
		q["category_id"] = cat
	}
	if f.BonusOnly != nil {
		q["is_bonus"] = *f.BonusOnly
	}
	if f.Window != nil {
		q["$or"] = windowOr(*f.Window,
			"event_date", "request_date", "award_date", "response_date")
	}
	return q
}

// =============================================================================
// POINTS LEDGER
// =============================================================================

func (s *Store) FindPoints(ctx context.Context, f rewards.PointFilter) ([]rewards.Point, error) {
	q := bson.M{}
	if len(f.UserIDs) > 0 {
		q["user_id"] = bson.M{"$in": userStrings(f.UserIDs)}
	}
	if cat := categoryClause(f.CategoryIDs, f.ExcludeCategoryIDs); cat != nil {
		q["category_id"] = cat
	}
	if f.BonusOnly != nil {
		q["is_bonus"] = *f.BonusOnly
	}
	if f.Window != nil {
		q["$or"] = windowOr(*f.Window, "award_date", "event_date")
	}

	cursor, err := s.db.Collection(collPoints).Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []pointDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]rewards.Point, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toPoint())
	}
	return out, nil
}

func (s *Store) InsertPoint(ctx context.Context, p *rewards.Point) error {
	_, err := s.db.Collection(collPoints).InsertOne(ctx, fromPoint(p))
	if mongo.IsDuplicateKeyError(err) {
		return rewards.ErrDuplicateAward
	}
	if err != nil {
		return fmt.Errorf("failed to insert point: %w", err)
	}
	return nil
}

func (s *Store) SumLedgerPoints(ctx context.Context, f rewards.PointFilter) (map[rewards.UserID]int, error) {
	match := bson.M{}
	if len(f.UserIDs) > 0 {
		match["user_id"] = bson.M{"$in": userStrings(f.UserIDs)}
	}
	if clause := categoryClause(f.CategoryIDs, f.ExcludeCategoryIDs); clause != nil {
		match["category_id"] = clause
	}
	if f.BonusOnly != nil {
		match["is_bonus"] = *f.BonusOnly
	}
	if f.Window != nil {
		// Grouped totals cannot be re-checked in process, so the
		// window binds the effective date (event date, else award
		// date), not the any-date prefilter.
		effective := bson.M{"$ifNull": bson.A{"$event_date", "$award_date"}}
		match["$expr"] = bson.M{"$and": bson.A{
			bson.M{"$gte": bson.A{effective, f.Window.Start.UTC()}},
			bson.M{"$lte": bson.A{effective, f.Window.End.UTC()}},
		}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$user_id",
			"total": bson.M{"$sum": "$points"},
		}}},
	}

	cursor, err := s.db.Collection(collPoints).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to sum points: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		UserID string `bson:"_id"`
		Total  int    `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	sums := make(map[rewards.UserID]int, len(rows))
	for _, row := range rows {
		sums[rewards.UserID(row.UserID)] = row.Total
	}
	return sums, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (s *Store) LegacyCategories(ctx context.Context) ([]rewards.Category, error) {
	return s.queryCategories(ctx, collLegacyCats, false)
}

func (s *Store) CurrentCategories(ctx context.Context) ([]rewards.Category, error) {
	return s.queryCategories(ctx, collCurrentCats, true)
}

func (s *Store) queryCategories(ctx context.Context, coll string, currentCode bool) ([]rewards.Category, error) {
	cursor, err := s.db.Collection(coll).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []categoryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]rewards.Category, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toCategory(currentCode))
	}
	return out, nil
}

func (s *Store) InsertLegacyCategory(ctx context.Context, c *rewards.Category) error {
	_, err := s.db.Collection(collLegacyCats).InsertOne(ctx, fromCategory(c, false))
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

// InsertCurrentCategory seeds the current registry.
func (s *Store) InsertCurrentCategory(ctx context.Context, c *rewards.Category) error {
	_, err := s.db.Collection(collCurrentCats).InsertOne(ctx, fromCategory(c, true))
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) GetUser(ctx context.Context, id rewards.UserID) (*rewards.User, error) {
	var doc userDoc
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, rewards.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

func (s *Store) FindUsers(ctx context.Context, f rewards.UserFilter) ([]rewards.User, error) {
	q := bson.M{}
	if len(f.Roles) > 0 {
		roles := make([]string, len(f.Roles))
		for i, r := range f.Roles {
			roles[i] = string(r)
		}
		q["role"] = bson.M{"$in": roles}
	}
	if len(f.Grades) > 0 {
		grades := make([]string, len(f.Grades))
		for i, g := range f.Grades {
			grades[i] = string(g)
		}
		q["grade"] = bson.M{"$in": grades}
	}
	if f.Department != "" {
		q["department"] = f.Department
	}

	cursor, err := s.db.Collection(collUsers).Find(ctx, q,
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]rewards.User, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toUser())
	}
	return out, nil
}

func (s *Store) InsertUser(ctx context.Context, u *rewards.User) error {
	doc := fromUser(u)
	_, err := s.db.Collection(collUsers).ReplaceOne(ctx,
		bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// =============================================================================
// REWARD CONFIG
// =============================================================================

func (s *Store) LoadRewardConfig(ctx context.Context) (*rewards.RewardConfig, error) {
	var doc configDoc
	err := s.db.Collection(collRewardConfig).
		FindOne(ctx, bson.M{"_id": rewardConfigDocName}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, rewards.ErrConfigMissing
	}
	if err != nil {
		return nil, err
	}
	return &doc.Config, nil
}

func (s *Store) SaveRewardConfig(ctx context.Context, c *rewards.RewardConfig) error {
	doc := configDoc{Name: rewardConfigDocName, Config: *c}
	_, err := s.db.Collection(collRewardConfig).ReplaceOne(ctx,
		bson.M{"_id": rewardConfigDocName}, doc, options.Replace().SetUpsert(true))
	return err
}

// =============================================================================
// CONVERSIONS AND QUERY HELPERS
// =============================================================================

func fromRequest(r *rewards.PointRequest) requestDoc {
	return requestDoc{
		ID:               string(r.ID),
		UserID:           string(r.UserID),
		CategoryID:       string(r.CategoryID),
		Points:           r.Points,
		IsBonus:          r.IsBonus,
		Status:           string(r.Status),
		EventDate:        r.EventDate,
		RequestDate:      r.RequestDate,
		AwardDate:        r.AwardDate,
		ResponseDate:     r.ResponseDate,
		UtilizationValue: r.UtilizationValue,
		Submission:       r.Submission,
		ProcessedBy:      string(r.ProcessedBy),
		ProcessedDate:    r.ProcessedDate,
		ProcessedDept:    r.ProcessedDept,
		ResponseNotes:    r.ResponseNotes,
		ManagerNotes:     r.ManagerNotes,
		AttachmentID:     r.AttachmentID,
		AttachmentName:   r.AttachmentName,
		HasAttachment:    r.HasAttachment,
		CreatedAt:        r.CreatedAt,
	}
}

func (d *requestDoc) toRequest() *rewards.PointRequest {
	return &rewards.PointRequest{
		ID:               rewards.RequestID(d.ID),
		UserID:           rewards.UserID(d.UserID),
		CategoryID:       rewards.CategoryID(d.CategoryID),
		Points:           d.Points,
		IsBonus:          d.IsBonus,
		Status:           rewards.RequestStatus(d.Status),
		EventDate:        d.EventDate,
		RequestDate:      d.RequestDate,
		AwardDate:        d.AwardDate,
		ResponseDate:     d.ResponseDate,
		UtilizationValue: d.UtilizationValue,
		Submission:       d.Submission,
		ProcessedBy:      rewards.UserID(d.ProcessedBy),
		ProcessedDate:    d.ProcessedDate,
		ProcessedDept:    d.ProcessedDept,
		ResponseNotes:    d.ResponseNotes,
		ManagerNotes:     d.ManagerNotes,
		AttachmentID:     d.AttachmentID,
		AttachmentName:   d.AttachmentName,
		HasAttachment:    d.HasAttachment,
		CreatedAt:        d.CreatedAt,
	}
}

func fromPoint(p *rewards.Point) pointDoc {
	doc := pointDoc{
		ID:         string(p.ID),
		UserID:     string(p.UserID),
		CategoryID: string(p.CategoryID),
		Points:     p.Points,
		IsBonus:    p.IsBonus,
		AwardDate:  p.AwardDate,
		EventDate:  p.EventDate,
		AwardedBy:  string(p.AwardedBy),
		Notes:      p.Notes,
	}
	if p.RequestID != nil {
		v := string(*p.RequestID)
		doc.RequestID = &v
	}
	return doc
}

func (d *pointDoc) toPoint() *rewards.Point {
	p := &rewards.Point{
		ID:         rewards.PointID(d.ID),
		UserID:     rewards.UserID(d.UserID),
		CategoryID: rewards.CategoryID(d.CategoryID),
		Points:     d.Points,
		IsBonus:    d.IsBonus,
		AwardDate:  d.AwardDate,
		EventDate:  d.EventDate,
		AwardedBy:  rewards.UserID(d.AwardedBy),
		Notes:      d.Notes,
	}
	if d.RequestID != nil {
		id := rewards.RequestID(*d.RequestID)
		p.RequestID = &id
	}
	return p
}

func fromCategory(c *rewards.Category, currentCode bool) categoryDoc {
	doc := categoryDoc{
		ID:            string(c.ID),
		Name:          c.Name,
		Department:    c.Department,
		Active:        c.Active,
		IsBonus:       c.IsBonus,
		GradePoints:   gradeMapOut(c.GradePoints),
		GradeLimits:   gradeMapOut(c.GradeLimits),
		PointsPerUnit: c.PointsPerUnit,
	}
	if currentCode {
		doc.CategoryCode = c.Code
	} else {
		doc.Code = c.Code
	}
	return doc
}

func (d *categoryDoc) toCategory(currentCode bool) *rewards.Category {
	code := d.Code
	if currentCode {
		code = d.CategoryCode
	}
	return &rewards.Category{
		ID:            rewards.CategoryID(d.ID),
		Name:          d.Name,
		Code:          code,
		Department:    d.Department,
		Active:        d.Active,
		IsBonus:       d.IsBonus,
		GradePoints:   gradeMapIn(d.GradePoints),
		GradeLimits:   gradeMapIn(d.GradeLimits),
		PointsPerUnit: d.PointsPerUnit,
	}
}

func fromUser(u *rewards.User) userDoc {
	doc := userDoc{
		ID:         string(u.ID),
		Name:       u.Name,
		Email:      u.Email,
		Grade:      string(u.Grade),
		Department: u.Department,
		Role:       string(u.Role),
	}
	if u.ManagerID != nil {
		v := string(*u.ManagerID)
		doc.ManagerID = &v
	}
	return doc
}

func (d *userDoc) toUser() *rewards.User {
	u := &rewards.User{
		ID:         rewards.UserID(d.ID),
		Name:       d.Name,
		Email:      d.Email,
		Grade:      rewards.Grade(d.Grade),
		Department: d.Department,
		Role:       rewards.Role(d.Role),
	}
	if d.ManagerID != nil {
		id := rewards.UserID(*d.ManagerID)
		u.ManagerID = &id
	}
	return u
}

func gradeMapOut(m map[rewards.Grade]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for g, v := range m {
		out[string(g)] = v
	}
	return out
}

func gradeMapIn(m map[string]int) map[rewards.Grade]int {
	if m == nil {
		return nil
	}
	out := make(map[rewards.Grade]int, len(m))
	for g, v := range m {
		out[rewards.Grade(g)] = v
	}
	return out
}

func userStrings(ids []rewards.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func categoryStrings(ids []rewards.CategoryID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// categoryClause combines include ($in) and exclude ($nin) sets.
func categoryClause(include, exclude []rewards.CategoryID) bson.M {
	clause := bson.M{}
	if len(include) > 0 {
		clause["$in"] = categoryStrings(include)
	}
	if len(exclude) > 0 {
		clause["$nin"] = categoryStrings(exclude)
	}
	if len(clause) == 0 {
		return nil
	}
	return clause
}

// windowOr builds the any-date prefilter across the given fields.
func windowOr(w rewards.Window, fields ...string) []bson.M {
	or := make([]bson.M, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: bson.M{
			"$gte": w.Start.UTC(),
			"$lte": w.End.UTC(),
		}})
	}
	return or
}
