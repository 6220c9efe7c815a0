package service

import (
	"context"
	"log/slog"

	"skycrm/internal/domain"
	"skycrm/internal/schema"
	"skycrm/internal/store"
)

// ResourceService runs every write through the validation engine before it
// reaches the store. All violations for a payload are collected and returned
// together.
type ResourceService struct {
	reg    *schema.Registry
	engine *schema.Engine
	store  *store.Store
	logger *slog.Logger
}

// NewResourceService wires a ResourceService.
func NewResourceService(reg *schema.Registry, st *store.Store, logger *slog.Logger) *ResourceService {
	return &ResourceService{
		reg:    reg,
		engine: schema.NewEngine(reg, st),
		store:  st,
		logger: logger,
	}
}

// Kinds returns the registered resource kinds.
func (s *ResourceService) Kinds() []string { return s.reg.Kinds() }

// Docs returns the registry introspection document.
func (s *ResourceService) Docs() map[string]schema.DocEntry { return s.reg.Docs() }

// Create validates and persists a new record for the owner.
func (s *ResourceService) Create(ctx context.Context, ownerID int64, kind string, payload map[string]any) (map[string]any, error) {
	violations, err := s.engine.Validate(ctx, ownerID, kind, payload, false, 0)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, &domain.ValidationErrors{Violations: violations}
	}

	record, err := s.store.Create(ctx, ownerID, kind, payload)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "record created", "kind", kind, "id", record["id"], "user_id", ownerID)
	return record, nil
}

// List returns the owner's records of a kind.
func (s *ResourceService) List(ctx context.Context, ownerID int64, kind string) ([]map[string]any, error) {
	return s.store.List(ctx, ownerID, kind)
}

// Get returns one owned record.
func (s *ResourceService) Get(ctx context.Context, ownerID int64, kind string, id int64) (map[string]any, error) {
	return s.store.Get(ctx, ownerID, kind, id)
}

// Update validates a partial payload against an existing owned record and
// persists it, returning the record as stored afterwards.
func (s *ResourceService) Update(ctx context.Context, ownerID int64, kind string, id int64, payload map[string]any) (map[string]any, error) {
	// Ownership is settled before validation so a cross-tenant probe cannot
	// learn anything from validation messages.
	if _, err := s.store.Get(ctx, ownerID, kind, id); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, domain.ErrValidation("empty update payload")
	}

	violations, err := s.engine.Validate(ctx, ownerID, kind, payload, true, id)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, &domain.ValidationErrors{Violations: violations}
	}

	record, err := s.store.Update(ctx, ownerID, kind, id, payload)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "record updated", "kind", kind, "id", id, "user_id", ownerID)
	return record, nil
}

// Delete removes an owned record and its dependents.
func (s *ResourceService) Delete(ctx context.Context, ownerID int64, kind string, id int64) error {
	if err := s.store.Delete(ctx, ownerID, kind, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "record deleted", "kind", kind, "id", id, "user_id", ownerID)
	return nil
}

// CreateBusiness validates the prospect payload and seeds the full default
// bundle (prospect, interaction, deal, payment) in one transaction. A missing
// status defaults to "new" and a missing pain_score to 5.
func (s *ResourceService) CreateBusiness(ctx context.Context, ownerID int64, payload map[string]any) (domain.BusinessIDs, error) {
	var ids domain.BusinessIDs

	if _, ok := payload["status"]; !ok {
		payload["status"] = "new"
	}
	if _, ok := payload["pain_score"]; !ok {
		payload["pain_score"] = int64(5)
	}

	violations, err := s.engine.Validate(ctx, ownerID, schema.KindProspects, payload, false, 0)
	if err != nil {
		return ids, err
	}
	if len(violations) > 0 {
		return ids, &domain.ValidationErrors{Violations: violations}
	}

	seed := domain.BusinessSeed{
		Name:    stringField(payload, "name"),
		Website: stringField(payload, "website"),
		Email:   stringField(payload, "email"),
		Phone:   stringField(payload, "phone"),
		Pain:    stringField(payload, "pain"),
		Status:  stringField(payload, "status"),
	}
	if v, ok := payload["pain_score"]; ok {
		if n, ok := schema.BindValue(schema.FieldSpec{Type: schema.TypeInteger}, v).(int64); ok {
			seed.PainScore = n
		}
	}

	ids, err = s.store.SeedBusiness(ctx, ownerID, seed)
	if err != nil {
		return ids, err
	}
	s.logger.InfoContext(ctx, "business seeded", "prospect_id", ids.ProspectID, "user_id", ownerID)
	return ids, nil
}

// Dashboard aggregates the owner's records: attempted-outreach counts,
// completed revenue, and the most recent count prospects.
func (s *ResourceService) Dashboard(ctx context.Context, ownerID int64, count int) (*store.DashboardData, error) {
	if count <= 0 {
		return nil, domain.ErrValidation("count must be a positive integer")
	}
	return s.store.Dashboard(ctx, ownerID, count)
}

func stringField(payload map[string]any, field string) string {
	s, _ := payload[field].(string)
	return s
}
