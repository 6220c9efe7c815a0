package schema

// Resource kind names. These are the only identifiers that ever appear in
// statement text; everything else is bound.
const (
	KindProspects    = "prospects"
	KindInteractions = "interactions"
	KindDeals        = "deals"
	KindPayments     = "payments"
)

// NewCRMRegistry builds the frozen registry for the four managed resource
// kinds: prospects, interactions, deals, and payments.
func NewCRMRegistry() *Registry {
	r := NewRegistry()

	r.MustRegister(Resource{
		Kind: KindProspects,
		Fields: map[string]FieldSpec{
			"name":       {Type: TypeString, Required: true, MaxLength: 255},
			"website":    {Type: TypeString, MaxLength: 500},
			"email":      {Type: TypeString, Required: true, MaxLength: 255, Unique: true},
			"phone":      {Type: TypeString, MaxLength: 20},
			"pain":       {Type: TypeString, MaxLength: 500},
			"pain_score": {Type: TypeInteger, Min: f64(0), Max: f64(10)},
			"status": {Type: TypeString, Required: true,
				Enum: []string{"new", "contacted", "qualified", "not_qualified", "won", "lost"}},
		},
		FieldOrder:   []string{"name", "website", "email", "phone", "pain", "pain_score", "status"},
		HasCreatedAt: true,
		HasUpdatedAt: true,
	})

	r.MustRegister(Resource{
		Kind: KindInteractions,
		Fields: map[string]FieldSpec{
			"prospect_id": {Type: TypeInteger, Required: true,
				ForeignKey: &ForeignKey{Table: KindProspects, Column: "id"}},
			"channel":        {Type: TypeString, Required: true, Enum: []string{"email", "phone", "sms"}},
			"type":           {Type: TypeString, Required: true, Enum: []string{"outbound", "inbound"}},
			"attempt_number": {Type: TypeInteger, Required: true, Min: f64(0)},
			"content":        {Type: TypeString, Required: true, MaxLength: 2000},
			"response_type": {Type: TypeString,
				Enum: []string{"opened", "clicked", "replied", "ignored"}},
			"success": {Type: TypeInteger, Min: f64(0), Max: f64(1)},
		},
		FieldOrder: []string{
			"prospect_id", "channel", "type", "attempt_number",
			"content", "response_type", "success",
		},
		HasCreatedAt: true,
	})

	r.MustRegister(Resource{
		Kind: KindDeals,
		Fields: map[string]FieldSpec{
			"prospect_id": {Type: TypeInteger, Required: true,
				ForeignKey: &ForeignKey{Table: KindProspects, Column: "id"}},
			"deal_value": {Type: TypeReal, Required: true, Min: f64(0)},
			"stage": {Type: TypeString, Required: true,
				Enum: []string{"initiated", "negotiating", "closed", "won", "lost"}},
			"stage_reason": {Type: TypeString, MaxLength: 500},
		},
		FieldOrder:   []string{"prospect_id", "deal_value", "stage", "stage_reason"},
		HasCreatedAt: true,
		HasUpdatedAt: true,
	})

	r.MustRegister(Resource{
		Kind: KindPayments,
		Fields: map[string]FieldSpec{
			"deal_id": {Type: TypeInteger, Required: true,
				ForeignKey: &ForeignKey{Table: KindDeals, Column: "id"}},
			"amount": {Type: TypeReal, Required: true, Min: f64(0), Max: f64(1000000)},
			"method": {Type: TypeString, Required: true, Enum: []string{"stripe", "api", "manual"}},
			"status": {Type: TypeString, Required: true, Enum: []string{"pending", "completed"}},
		},
		FieldOrder:   []string{"deal_id", "amount", "method", "status"},
		HasCreatedAt: true,
	})

	r.Freeze()
	return r
}
