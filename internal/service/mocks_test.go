package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
	"github.com/noah-isme/qbank-access-api/internal/repository"
)

const (
	studentID   = "9b2f3c1e-6c4d-4c59-9a55-0d6f3a1b2c01"
	otherID     = "9b2f3c1e-6c4d-4c59-9a55-0d6f3a1b2c03"
	adminID     = "9b2f3c1e-6c4d-4c59-9a55-0d6f3a1b2c02"
	bundleID    = "5e8a7d10-3b2c-4f1e-8d7a-1c2b3a4d5e01"
	bundleTwoID = "5e8a7d10-3b2c-4f1e-8d7a-1c2b3a4d5e02"
)

var (
	studentPrincipal = models.Principal{UserID: studentID, Role: models.RoleStudent}
	adminPrincipal   = models.Principal{UserID: adminID, Role: models.RoleAdmin}
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type mockUserRepo struct {
	users     map[string]*models.User
	findErr   error
	auditErr  error
	auditLogs []*models.AuditLog
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{
		studentID: {ID: studentID, Email: "student@example.com", Username: "student", Role: models.RoleStudent},
		otherID:   {ID: otherID, Email: "other@example.com", Username: "other", Role: models.RoleStudent},
		adminID:   {ID: adminID, Email: "admin@example.com", Username: "admin", Role: models.RoleAdmin},
	}}
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return m.auditErr
}

type mockCatalog struct {
	bundles  map[string]*models.Bundle
	contents map[string][]string
	err      error
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		bundles: map[string]*models.Bundle{
			bundleID:    {ID: bundleID, Title: "Physics", Price: 19.99},
			bundleTwoID: {ID: bundleTwoID, Title: "Chemistry", Price: 9.5},
		},
		contents: map[string][]string{
			bundleID:    {"qb-phy-1", "qb-phy-2"},
			bundleTwoID: {"qb-chem-1"},
		},
	}
}

func (m *mockCatalog) Bundle(ctx context.Context, id string) (*models.Bundle, error) {
	if m.err != nil {
		return nil, m.err
	}
	if b, ok := m.bundles[id]; ok {
		copy := *b
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCatalog) Bundles(ctx context.Context, ids []string) ([]models.Bundle, error) {
	var out []models.Bundle
	for _, id := range ids {
		if b, ok := m.bundles[id]; ok {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *mockCatalog) ContentIDs(ctx context.Context, id string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]string{}, m.contents[id]...), nil
}

func (m *mockCatalog) AllContentIDs(ctx context.Context) ([]string, error) {
	var all []string
	for _, ids := range m.contents {
		all = append(all, ids...)
	}
	sort.Strings(all)
	return all, nil
}

// mockGrantRepo keeps one row per (user, bundle) like the unique constraint does.
type mockGrantRepo struct {
	rows       map[string]*models.AccessGrant
	upsertErrs map[string]error
	listErr    error
	upserts    int
}

func newMockGrantRepo() *mockGrantRepo {
	return &mockGrantRepo{rows: map[string]*models.AccessGrant{}, upsertErrs: map[string]error{}}
}

func pairKey(userID, bundleID string) string { return userID + "|" + bundleID }

func (m *mockGrantRepo) Upsert(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error) {
	if err := m.upsertErrs[grant.UserID]; err != nil {
		return nil, err
	}
	m.upserts++
	key := pairKey(grant.UserID, grant.BundleID)
	row, ok := m.rows[key]
	if !ok {
		row = &models.AccessGrant{ID: uuid.NewString(), UserID: grant.UserID, BundleID: grant.BundleID, CreatedAt: grant.GrantedAt}
		m.rows[key] = row
	}
	row.GrantedBy = grant.GrantedBy
	row.GrantedAt = grant.GrantedAt
	row.ExpiresAt = grant.ExpiresAt
	row.Notes = grant.Notes
	row.IsActive = true
	row.UpdatedAt = grant.GrantedAt
	copy := *row
	return &copy, nil
}

func (m *mockGrantRepo) Revoke(ctx context.Context, userID, bundleID string) (*models.AccessGrant, error) {
	row, ok := m.rows[pairKey(userID, bundleID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	row.IsActive = false
	copy := *row
	return &copy, nil
}

func (m *mockGrantRepo) FindByUserBundle(ctx context.Context, userID, bundleID string) (*models.AccessGrant, error) {
	row, ok := m.rows[pairKey(userID, bundleID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *row
	return &copy, nil
}

func (m *mockGrantRepo) ListValidByUser(ctx context.Context, userID string, now time.Time) ([]models.AccessGrant, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []models.AccessGrant{}
	for _, row := range m.rows {
		if row.UserID == userID && row.IsValidAt(now) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BundleID < out[j].BundleID })
	return out, nil
}

func (m *mockGrantRepo) List(ctx context.Context, filter dto.AccessFilter) ([]models.AccessGrantDetail, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []models.AccessGrantDetail
	for _, row := range m.rows {
		if filter.UserID != "" && row.UserID != filter.UserID {
			continue
		}
		if filter.IsActive != nil && row.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, models.AccessGrantDetail{AccessGrant: *row})
	}
	return out, len(out), nil
}

func (m *mockGrantRepo) Stats(ctx context.Context, now time.Time) (*models.GrantStats, error) {
	stats := &models.GrantStats{TopBundles: []models.BundleGrantRank{}}
	for _, row := range m.rows {
		switch {
		case !row.IsActive:
			stats.TotalRevoked++
		case row.ExpiresAt != nil && row.ExpiresAt.After(now):
			stats.TotalActive++
			stats.ActiveWithExpiry++
		case row.ExpiresAt != nil:
			stats.TotalActive++
			stats.Expired++
		default:
			stats.TotalActive++
		}
	}
	return stats, nil
}

type mockPurchaseRepo struct {
	rows map[string]*models.Purchase
	err  error
}

func newMockPurchaseRepo() *mockPurchaseRepo {
	return &mockPurchaseRepo{rows: map[string]*models.Purchase{}}
}

func (m *mockPurchaseRepo) UpsertIntent(ctx context.Context, userID, bundleID string) (*models.Purchase, error) {
	if m.err != nil {
		return nil, m.err
	}
	key := pairKey(userID, bundleID)
	row, ok := m.rows[key]
	if ok && row.PaymentDone {
		return nil, sql.ErrNoRows
	}
	if !ok {
		row = &models.Purchase{ID: uuid.NewString(), UserID: userID, BundleID: bundleID}
		m.rows[key] = row
	}
	copy := *row
	return &copy, nil
}

func (m *mockPurchaseRepo) MarkPaid(ctx context.Context, userID, bundleID string) (*models.Purchase, error) {
	row, ok := m.rows[pairKey(userID, bundleID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	row.PaymentDone = true
	copy := *row
	return &copy, nil
}

func (m *mockPurchaseRepo) ListPaidByUser(ctx context.Context, userID string) ([]models.Purchase, error) {
	out := []models.Purchase{}
	for _, row := range m.rows {
		if row.UserID == userID && row.PaymentDone {
			out = append(out, *row)
		}
	}
	return out, nil
}

// mockRequestRepo mirrors the conditional upsert and transactional review of
// the SQL repository.
type mockRequestRepo struct {
	rows      map[string]*models.AccessRequest
	grants    *mockGrantRepo
	submitErr []error
	submits   int
}

func newMockRequestRepo(grants *mockGrantRepo) *mockRequestRepo {
	return &mockRequestRepo{rows: map[string]*models.AccessRequest{}, grants: grants}
}

func (m *mockRequestRepo) Submit(ctx context.Context, req *models.AccessRequest) (*models.AccessRequest, error) {
	m.submits++
	if len(m.submitErr) > 0 {
		err := m.submitErr[0]
		m.submitErr = m.submitErr[1:]
		if err != nil {
			return nil, err
		}
	}
	for _, row := range m.rows {
		if row.UserID == req.UserID && row.BundleID == req.BundleID {
			if row.Status.Outstanding() {
				return nil, sql.ErrNoRows
			}
			row.RequestID = req.RequestID
			row.BundleName = req.BundleName
			row.Status = models.AccessRequestPending
			row.RequestedAt = req.RequestedAt
			row.ReviewedAt, row.ReviewedBy, row.ReviewNotes = nil, nil, nil
			copy := *row
			return &copy, nil
		}
	}
	row := *req
	row.Status = models.AccessRequestPending
	m.rows[row.ID] = &row
	copy := row
	return &copy, nil
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*models.AccessRequest, error) {
	if row, ok := m.rows[id]; ok {
		copy := *row
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestRepo) FindByRequestID(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	for _, row := range m.rows {
		if row.RequestID == strings.ToUpper(requestID) {
			copy := *row
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestRepo) FindByUserBundle(ctx context.Context, userID, bundleID string) (*models.AccessRequest, error) {
	for _, row := range m.rows {
		if row.UserID == userID && row.BundleID == bundleID {
			copy := *row
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestRepo) Review(ctx context.Context, params repository.ReviewParams, grant *models.AccessGrant) (*models.AccessRequest, *models.AccessGrant, error) {
	row, ok := m.rows[params.ID]
	if !ok || row.Status != params.From {
		return nil, nil, repository.ErrStaleState
	}
	var stored *models.AccessGrant
	if grant != nil {
		var err error
		if stored, err = m.grants.Upsert(ctx, grant); err != nil {
			return nil, nil, err
		}
	}
	reviewedAt := params.ReviewedAt
	reviewer := params.ReviewerID
	row.Status = params.To
	row.ReviewedAt = &reviewedAt
	row.ReviewedBy = &reviewer
	row.ReviewNotes = params.Notes
	copy := *row
	return &copy, stored, nil
}

func (m *mockRequestRepo) List(ctx context.Context, filter dto.AccessFilter) ([]models.AccessRequestDetail, int, error) {
	var out []models.AccessRequestDetail
	for _, row := range m.rows {
		if filter.UserID != "" && row.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && row.Status != *filter.Status {
			continue
		}
		out = append(out, models.AccessRequestDetail{AccessRequest: *row})
	}
	return out, len(out), nil
}
