package billing

import "time"

const (
	PlanFree   = "free"
	PlanFamily = "family"
)

type Subscription struct {
	ID                   int64      `json:"id"`
	FamilyID             int64      `json:"family_id"`
	StripeCustomerID     string     `json:"-"`
	StripeSubscriptionID *string    `json:"-"`
	Plan                 string     `json:"plan"`
	Status               string     `json:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Active reports whether the subscription grants paid features.
func (s *Subscription) Active() bool {
	return s.Plan != PlanFree && (s.Status == "active" || s.Status == "trialing")
}
