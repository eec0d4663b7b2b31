package billing

import (
	"database/sql"
	"fmt"
	"time"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*Subscription, error) {
	var sub Subscription
	var stripeSubID sql.NullString
	var periodEnd sql.NullTime
	var cancelAtPeriodEnd int
	err := scanner.Scan(
		&sub.ID, &sub.FamilyID, &sub.StripeCustomerID, &stripeSubID, &sub.Plan,
		&sub.Status, &periodEnd, &cancelAtPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stripeSubID.Valid {
		sub.StripeSubscriptionID = &stripeSubID.String
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd != 0
	return &sub, nil
}

const subscriptionCols = `id, family_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, cancel_at_period_end, created_at, updated_at`

// GetOrCreate returns the family's subscription row, inserting the default
// free plan when none exists.
func (s *SubscriptionStore) GetOrCreate(familyID int64) (*Subscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO subscriptions (family_id) VALUES (?) ON CONFLICT(family_id) DO NOTHING`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return s.GetByFamilyID(familyID)
}

func (s *SubscriptionStore) GetByFamilyID(familyID int64) (*Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE family_id = ?`, familyID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by family: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByStripeID(stripeSubID string) (*Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE stripe_subscription_id = ?`,
		stripeSubID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by stripe id: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByStripeCustomerID(customerID string) (*Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE stripe_customer_id = ?`,
		customerID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by customer id: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) SetStripeCustomerID(id int64, customerID string) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET stripe_customer_id = ?, updated_at = datetime('now') WHERE id = ?`,
		customerID, id,
	)
	if err != nil {
		return fmt.Errorf("set stripe customer id: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) SetStripeSubscriptionID(id int64, stripeSubID string) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET stripe_subscription_id = ?, updated_at = datetime('now') WHERE id = ?`,
		stripeSubID, id,
	)
	if err != nil {
		return fmt.Errorf("set stripe subscription id: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) UpdatePlan(id int64, plan, status string) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET plan = ?, status = ?, updated_at = datetime('now') WHERE id = ?`,
		plan, status, id,
	)
	if err != nil {
		return fmt.Errorf("update subscription plan: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) UpdateStatus(id int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) SetCancelAtPeriodEnd(id int64, cancel bool) error {
	var v int
	if cancel {
		v = 1
	}
	_, err := s.db.Exec(
		`UPDATE subscriptions SET cancel_at_period_end = ?, updated_at = datetime('now') WHERE id = ?`,
		v, id,
	)
	if err != nil {
		return fmt.Errorf("set cancel at period end: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) UpdatePeriodEnd(id int64, periodEnd time.Time) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET current_period_end = ?, updated_at = datetime('now') WHERE id = ?`,
		periodEnd, id,
	)
	if err != nil {
		return fmt.Errorf("update period end: %w", err)
	}
	return nil
}
