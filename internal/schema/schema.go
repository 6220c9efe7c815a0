// Package schema holds the declarative per-resource field specifications and
// the validation engine that enforces them. The registry is the single source
// of truth for both validation and the read-only documentation surface.
package schema

import (
	"fmt"
	"sort"
)

// OwnerKey is the tenant-ownership column present on every resource table.
// It is injected by the store on create and is never client-writable.
const OwnerKey = "user_id"

// FieldType enumerates the supported declared field types.
type FieldType string

// Supported field types.
const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeReal    FieldType = "real"
)

// ForeignKey names the referenced resource table and column. References are
// resolved per tenant: the target row must belong to the same owner.
type ForeignKey struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// FieldSpec is the declarative rule set for a single field.
type FieldSpec struct {
	Type       FieldType   `json:"type"`
	Required   bool        `json:"required"`
	MaxLength  int         `json:"max_length,omitempty"`
	Min        *float64    `json:"min,omitempty"`
	Max        *float64    `json:"max,omitempty"`
	Enum       []string    `json:"enum,omitempty"`
	ForeignKey *ForeignKey `json:"fk,omitempty"`
	Unique     bool        `json:"unique,omitempty"`
}

// Resource describes one registered resource kind. Kind doubles as the table
// name; only registered kinds ever reach statement text.
type Resource struct {
	Kind         string
	Fields       map[string]FieldSpec
	FieldOrder   []string
	HasCreatedAt bool
	HasUpdatedAt bool
}

// Registry holds the immutable set of registered resource kinds. Register is
// only legal before Freeze; afterwards the registry is read-only and safe for
// concurrent use.
type Registry struct {
	kinds     []string
	resources map[string]*Resource
	frozen    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]*Resource)}
}

// Register adds a resource kind with its field specs. The field order given
// here is the order the validator reports per-field violations in.
func (r *Registry) Register(res Resource) error {
	if r.frozen {
		return fmt.Errorf("registry is frozen; cannot register %q", res.Kind)
	}
	if res.Kind == "" {
		return fmt.Errorf("resource kind is required")
	}
	if _, dup := r.resources[res.Kind]; dup {
		return fmt.Errorf("resource kind %q already registered", res.Kind)
	}
	if len(res.FieldOrder) != len(res.Fields) {
		return fmt.Errorf("resource %q: field order does not match fields", res.Kind)
	}
	for _, name := range res.FieldOrder {
		if _, ok := res.Fields[name]; !ok {
			return fmt.Errorf("resource %q: ordered field %q not in fields", res.Kind, name)
		}
		if name == OwnerKey || name == "id" {
			return fmt.Errorf("resource %q: field %q is reserved", res.Kind, name)
		}
	}
	r.resources[res.Kind] = &res
	r.kinds = append(r.kinds, res.Kind)
	return nil
}

// MustRegister is Register but panics on error; for process-start wiring.
func (r *Registry) MustRegister(res Resource) {
	if err := r.Register(res); err != nil {
		panic(err)
	}
}

// Freeze makes the registry immutable.
func (r *Registry) Freeze() { r.frozen = true }

// Get returns the resource for a kind.
func (r *Registry) Get(kind string) (*Resource, bool) {
	res, ok := r.resources[kind]
	return res, ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []string {
	out := make([]string, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// DocEntry is the read-only introspection shape for one resource kind.
type DocEntry struct {
	Schema    map[string]FieldSpec `json:"schema"`
	Endpoints map[string]string    `json:"endpoints"`
}

// Docs returns the registry contents keyed by resource kind, for the
// documentation surface. The result is a copy; mutating it has no effect.
func (r *Registry) Docs() map[string]DocEntry {
	docs := make(map[string]DocEntry, len(r.kinds))
	for _, kind := range r.kinds {
		res := r.resources[kind]
		fields := make(map[string]FieldSpec, len(res.Fields))
		for name, spec := range res.Fields {
			fields[name] = spec
		}
		docs[kind] = DocEntry{
			Schema: fields,
			Endpoints: map[string]string{
				"create": "POST /" + kind,
				"list":   "GET /" + kind,
				"get":    "GET /" + kind + "/{id}",
				"update": "PUT /" + kind + "/{id}",
				"delete": "DELETE /" + kind + "/{id}",
			},
		}
	}
	return docs
}

// sortedKeys returns the payload's keys in deterministic order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// f64 is a convenience for building Min/Max bounds in resource definitions.
func f64(v float64) *float64 { return &v }
