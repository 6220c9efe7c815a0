package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skycrm/internal/db"
	"skycrm/internal/domain"
	"skycrm/internal/schema"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	writeDB, readDB := db.OpenTestSQLite(t)
	return New(writeDB, readDB, schema.NewCRMRegistry()), writeDB
}

func createTestUser(t *testing.T, writeDB *sql.DB, email string) int64 {
	t.Helper()
	res, err := writeDB.Exec(
		"INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)",
		"Test User", email, "x")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func createProspect(t *testing.T, s *Store, ownerID int64, email string) int64 {
	t.Helper()
	record, err := s.Create(context.Background(), ownerID, schema.KindProspects, map[string]any{
		"name":   "Acme",
		"email":  email,
		"status": "new",
	})
	require.NoError(t, err)
	return record["id"].(int64)
}

func TestCreateAndGet_RoundTrip(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	ctx := context.Background()

	record, err := s.Create(ctx, owner, schema.KindProspects, map[string]any{
		"name":   "Acme",
		"email":  "sales@acme.test",
		"phone":  "555-0100",
		"status": "new",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", record["name"])
	assert.Equal(t, owner, record["user_id"])
	assert.NotEmpty(t, record["created_at"])

	got, err := s.Get(ctx, owner, schema.KindProspects, record["id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, record["email"], got["email"])
}

func TestGet_OtherTenantIsNotFound(t *testing.T) {
	s, writeDB := newTestStore(t)
	alice := createTestUser(t, writeDB, "alice@example.com")
	bob := createTestUser(t, writeDB, "bob@example.com")
	ctx := context.Background()

	id := createProspect(t, s, alice, "p@acme.test")

	_, err := s.Get(ctx, bob, schema.KindProspects, id)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestList_ScopedToOwner(t *testing.T) {
	s, writeDB := newTestStore(t)
	alice := createTestUser(t, writeDB, "alice@example.com")
	bob := createTestUser(t, writeDB, "bob@example.com")
	ctx := context.Background()

	createProspect(t, s, alice, "one@acme.test")
	createProspect(t, s, alice, "two@acme.test")
	createProspect(t, s, bob, "three@acme.test")

	records, err := s.List(ctx, alice, schema.KindProspects)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = s.List(ctx, bob, schema.KindProspects)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestUpdate_StampsUpdatedAt(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	ctx := context.Background()

	id := createProspect(t, s, owner, "p@acme.test")

	updated, err := s.Update(ctx, owner, schema.KindProspects, id, map[string]any{
		"status": "contacted",
	})
	require.NoError(t, err)
	assert.Equal(t, "contacted", updated["status"])
	assert.NotNil(t, updated["updated_at"])
}

func TestUpdate_OtherTenantIsNotFound(t *testing.T) {
	s, writeDB := newTestStore(t)
	alice := createTestUser(t, writeDB, "alice@example.com")
	bob := createTestUser(t, writeDB, "bob@example.com")
	ctx := context.Background()

	id := createProspect(t, s, alice, "p@acme.test")

	_, err := s.Update(ctx, bob, schema.KindProspects, id, map[string]any{"status": "won"})
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)

	// Unchanged for the real owner.
	got, err := s.Get(ctx, alice, schema.KindProspects, id)
	require.NoError(t, err)
	assert.Equal(t, "new", got["status"])
}

func TestUpdate_EmptyPayloadRejected(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	id := createProspect(t, s, owner, "p@acme.test")

	_, err := s.Update(context.Background(), owner, schema.KindProspects, id, map[string]any{})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestCreate_UniqueConstraintMapsToConflict(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	ctx := context.Background()

	createProspect(t, s, owner, "dup@acme.test")

	_, err := s.Create(ctx, owner, schema.KindProspects, map[string]any{
		"name":   "Acme Again",
		"email":  "dup@acme.test",
		"status": "new",
	})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCreate_SameEmailDifferentTenantAllowed(t *testing.T) {
	s, writeDB := newTestStore(t)
	alice := createTestUser(t, writeDB, "alice@example.com")
	bob := createTestUser(t, writeDB, "bob@example.com")

	createProspect(t, s, alice, "shared@acme.test")
	createProspect(t, s, bob, "shared@acme.test")
}

func TestDelete_Prospect_CascadesToDependents(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	ctx := context.Background()

	prospectID := createProspect(t, s, owner, "p@acme.test")

	interaction, err := s.Create(ctx, owner, schema.KindInteractions, map[string]any{
		"prospect_id":    prospectID,
		"channel":        "email",
		"type":           "outbound",
		"attempt_number": int64(1),
		"content":        "Hello",
	})
	require.NoError(t, err)

	deal, err := s.Create(ctx, owner, schema.KindDeals, map[string]any{
		"prospect_id": prospectID,
		"deal_value":  2500.0,
		"stage":       "initiated",
	})
	require.NoError(t, err)

	payment, err := s.Create(ctx, owner, schema.KindPayments, map[string]any{
		"deal_id": deal["id"],
		"amount":  100.0,
		"method":  "manual",
		"status":  "pending",
	})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, owner, schema.KindProspects, prospectID))

	var nf *domain.NotFoundError
	_, err = s.Get(ctx, owner, schema.KindInteractions, interaction["id"].(int64))
	require.ErrorAs(t, err, &nf)
	_, err = s.Get(ctx, owner, schema.KindDeals, deal["id"].(int64))
	require.ErrorAs(t, err, &nf)
	_, err = s.Get(ctx, owner, schema.KindPayments, payment["id"].(int64))
	require.ErrorAs(t, err, &nf)
}

func TestDelete_Deal_CascadesToPaymentsOnly(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	ctx := context.Background()

	prospectID := createProspect(t, s, owner, "p@acme.test")

	deal, err := s.Create(ctx, owner, schema.KindDeals, map[string]any{
		"prospect_id": prospectID,
		"deal_value":  500.0,
		"stage":       "initiated",
	})
	require.NoError(t, err)

	payment, err := s.Create(ctx, owner, schema.KindPayments, map[string]any{
		"deal_id": deal["id"],
		"amount":  50.0,
		"method":  "stripe",
		"status":  "pending",
	})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, owner, schema.KindDeals, deal["id"].(int64)))

	var nf *domain.NotFoundError
	_, err = s.Get(ctx, owner, schema.KindPayments, payment["id"].(int64))
	require.ErrorAs(t, err, &nf)

	// Prospect untouched.
	_, err = s.Get(ctx, owner, schema.KindProspects, prospectID)
	require.NoError(t, err)
}

func TestDelete_SecondDeleteIsNotFound(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	ctx := context.Background()

	id := createProspect(t, s, owner, "p@acme.test")

	require.NoError(t, s.Delete(ctx, owner, schema.KindProspects, id))

	var nf *domain.NotFoundError
	err := s.Delete(ctx, owner, schema.KindProspects, id)
	require.ErrorAs(t, err, &nf)
}

func TestRefExists_ScopedToOwner(t *testing.T) {
	s, writeDB := newTestStore(t)
	alice := createTestUser(t, writeDB, "alice@example.com")
	bob := createTestUser(t, writeDB, "bob@example.com")
	ctx := context.Background()

	id := createProspect(t, s, alice, "p@acme.test")

	exists, err := s.RefExists(ctx, alice, schema.KindProspects, "id", id)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.RefExists(ctx, bob, schema.KindProspects, "id", id)
	require.NoError(t, err)
	assert.False(t, exists, "another tenant's row must not resolve")
}

func TestValueTaken_ExcludesRecordUnderUpdate(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	ctx := context.Background()

	id := createProspect(t, s, owner, "p@acme.test")

	taken, err := s.ValueTaken(ctx, owner, schema.KindProspects, "email", "p@acme.test", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = s.ValueTaken(ctx, owner, schema.KindProspects, "email", "p@acme.test", id)
	require.NoError(t, err)
	assert.False(t, taken, "the record being updated is exempt")
}

func TestSeedBusiness_CreatesBundle(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	ctx := context.Background()

	ids, err := s.SeedBusiness(ctx, owner, domain.BusinessSeed{
		Name:   "Globex",
		Email:  "contact@globex.test",
		Status: "new",
	})
	require.NoError(t, err)

	deal, err := s.Get(ctx, owner, schema.KindDeals, ids.DealID)
	require.NoError(t, err)
	assert.Equal(t, "initiated", deal["stage"])
	assert.Equal(t, ids.ProspectID, deal["prospect_id"])

	payment, err := s.Get(ctx, owner, schema.KindPayments, ids.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "pending", payment["status"])
	assert.Equal(t, ids.DealID, payment["deal_id"])

	interaction, err := s.Get(ctx, owner, schema.KindInteractions, ids.InteractionID)
	require.NoError(t, err)
	assert.Equal(t, "Initial outreach", interaction["content"])
}

func TestSeedBusiness_DuplicateEmailRollsBack(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	ctx := context.Background()

	seed := domain.BusinessSeed{Name: "Globex", Email: "contact@globex.test", Status: "new"}
	_, err := s.SeedBusiness(ctx, owner, seed)
	require.NoError(t, err)

	_, err = s.SeedBusiness(ctx, owner, seed)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	// Only the first bundle exists.
	deals, err := s.List(ctx, owner, schema.KindDeals)
	require.NoError(t, err)
	assert.Len(t, deals, 1)
}

func TestDashboard_AggregatesAndRecentProspects(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	other := createTestUser(t, writeDB, "b@example.com")
	ctx := context.Background()

	createProspect(t, s, owner, "one@acme.test")
	prospectID := createProspect(t, s, owner, "two@acme.test")
	createProspect(t, s, other, "theirs@acme.test")

	// Attempted outreach vs a mere record: only attempt_number > 0 counts.
	for _, attempt := range []int64{0, 1, 2} {
		_, err := s.Create(ctx, owner, schema.KindInteractions, map[string]any{
			"prospect_id":    prospectID,
			"channel":        "email",
			"type":           "outbound",
			"attempt_number": attempt,
			"content":        "Hello",
		})
		require.NoError(t, err)
	}

	deal, err := s.Create(ctx, owner, schema.KindDeals, map[string]any{
		"prospect_id": prospectID,
		"deal_value":  2500.0,
		"stage":       "initiated",
	})
	require.NoError(t, err)

	for _, p := range []struct {
		amount float64
		status string
	}{{150.0, "completed"}, {75.5, "completed"}, {999.0, "pending"}} {
		_, err := s.Create(ctx, owner, schema.KindPayments, map[string]any{
			"deal_id": deal["id"],
			"amount":  p.amount,
			"method":  "manual",
			"status":  p.status,
		})
		require.NoError(t, err)
	}

	data, err := s.Dashboard(ctx, owner, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(2), data.Counts.Prospects)
	assert.Equal(t, int64(2), data.Counts.InteractionsAttempted)
	assert.Equal(t, int64(1), data.Counts.DealsAttempted)
	assert.InDelta(t, 225.5, data.Counts.PaymentsTotal, 0.001, "pending payments excluded")

	// Only prospects come back, newest first, capped at count.
	require.Len(t, data.RecentProspects, 1)
	assert.Equal(t, prospectID, data.RecentProspects[0]["id"])
}

func TestDashboard_NoAttemptsMeansNoAttemptedDeals(t *testing.T) {
	s, writeDB := newTestStore(t)
	owner := createTestUser(t, writeDB, "a@example.com")
	ctx := context.Background()

	prospectID := createProspect(t, s, owner, "p@acme.test")
	_, err := s.Create(ctx, owner, schema.KindDeals, map[string]any{
		"prospect_id": prospectID,
		"deal_value":  100.0,
		"stage":       "initiated",
	})
	require.NoError(t, err)

	data, err := s.Dashboard(ctx, owner, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), data.Counts.DealsAttempted)
	assert.Equal(t, int64(0), data.Counts.InteractionsAttempted)
	assert.Equal(t, 0.0, data.Counts.PaymentsTotal)
}
