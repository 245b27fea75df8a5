package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"streamCastAPI/internal/types/notification"
	"streamCastAPI/internal/types/plan"
	"streamCastAPI/internal/types/session"
	"streamCastAPI/internal/types/subscriber"
	"streamCastAPI/internal/types/subscription"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriberService owns the subscriber side of the entitlement store:
// identity rows, entitlement grants, sessions, plans and device tokens.
type SubscriberService struct {
	db *pgxpool.Pool
}

func NewSubscriberService(db *pgxpool.Pool) *SubscriberService {
	return &SubscriberService{db: db}
}

const subscriberColumns = `id, clerk_id, email, name, subscription_status, active_plans, purchased_ppv, has_manual_subscription, created_at, updated_at`

func (s *SubscriberService) scanSubscriber(ctx context.Context, row pgx.Row) (*subscriber.Subscriber, error) {
	sub := &subscriber.Subscriber{}
	err := row.Scan(
		&sub.ID,
		&sub.ClerkID,
		&sub.Email,
		&sub.Name,
		&sub.SubscriptionStatus,
		&sub.ActivePlans,
		&sub.PurchasedPPV,
		&sub.HasManualSubscription,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	rentals, err := s.getRentals(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	sub.Rentals = rentals
	return sub, nil
}

func (s *SubscriberService) CreateSubscriber(ctx context.Context, req *subscriber.CreateSubscriberRequest) (*subscriber.Subscriber, error) {
	sub := &subscriber.Subscriber{
		ID:                 uuid.New().String(),
		ClerkID:            req.ClerkID,
		Email:              req.Email,
		Name:               req.Name,
		SubscriptionStatus: subscriber.StatusNone,
		ActivePlans:        []string{},
		PurchasedPPV:       []string{},
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	query := `
	INSERT INTO subscribers (id, clerk_id, email, name, subscription_status, active_plans, purchased_ppv, has_manual_subscription, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(
		ctx,
		query,
		sub.ID,
		sub.ClerkID,
		sub.Email,
		sub.Name,
		sub.SubscriptionStatus,
		sub.ActivePlans,
		sub.PurchasedPPV,
		sub.HasManualSubscription,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	return sub, nil
}

func (s *SubscriberService) GetSubscriberByEmail(ctx context.Context, email string) (*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE email = $1`
	return s.scanSubscriber(ctx, s.db.QueryRow(ctx, query, email))
}

func (s *SubscriberService) GetSubscriberByID(ctx context.Context, id string) (*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE id = $1`
	return s.scanSubscriber(ctx, s.db.QueryRow(ctx, query, id))
}

func (s *SubscriberService) GetSubscriberByClerkID(ctx context.Context, clerkID string) (*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE clerk_id = $1`
	return s.scanSubscriber(ctx, s.db.QueryRow(ctx, query, clerkID))
}

func (s *SubscriberService) UpdateSubscriberByClerkID(ctx context.Context, clerkID string, req *subscriber.UpdateSubscriberRequest) error {
	query := `
	UPDATE subscribers
	SET email = COALESCE(NULLIF($1, ''), email),
	    name = COALESCE(NULLIF($2, ''), name),
	    updated_at = NOW()
	WHERE clerk_id = $3
	`
	_, err := s.db.Exec(ctx, query, req.Email, req.Name, clerkID)
	if err != nil {
		return fmt.Errorf("failed to update subscriber: %w", err)
	}
	return nil
}

func (s *SubscriberService) DeleteSubscriberByClerkID(ctx context.Context, clerkID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM subscribers WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Entitlement writes (webhook driven)
// ---------------------------------------------------------------------------

// GrantPPV records a permanent one-time purchase for an asset. Granting the
// same asset twice is a no-op.
func (s *SubscriberService) GrantPPV(ctx context.Context, subscriberID, assetID string) error {
	query := `
	UPDATE subscribers
	SET purchased_ppv = array_append(purchased_ppv, $1), updated_at = NOW()
	WHERE id = $2 AND NOT ($1 = ANY(purchased_ppv))
	`
	_, err := s.db.Exec(ctx, query, assetID, subscriberID)
	if err != nil {
		return fmt.Errorf("failed to grant PPV: %w", err)
	}
	return nil
}

// GrantRental inserts a fresh time-bounded grant expiring at now + duration.
// Re-purchase creates a new row; there is no renewal.
func (s *SubscriberService) GrantRental(ctx context.Context, subscriberID, contentID string, durationHours int) error {
	expiresAt := time.Now().Add(time.Duration(durationHours) * time.Hour)
	query := `
	INSERT INTO subscriber_rentals (subscriber_id, content_id, expires_at, created_at)
	VALUES ($1, $2, $3, NOW())
	`
	_, err := s.db.Exec(ctx, query, subscriberID, contentID, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to grant rental: %w", err)
	}
	return nil
}

// SetManualSubscription flips the admin override flag that bypasses all
// computed entitlement state.
func (s *SubscriberService) SetManualSubscription(ctx context.Context, subscriberID string, enabled bool) error {
	query := `UPDATE subscribers SET has_manual_subscription = $1, updated_at = NOW() WHERE id = $2`
	_, err := s.db.Exec(ctx, query, enabled, subscriberID)
	if err != nil {
		return fmt.Errorf("failed to set manual subscription: %w", err)
	}
	return nil
}

func (s *SubscriberService) getRentals(ctx context.Context, subscriberID string) ([]subscriber.Rental, error) {
	query := `
	SELECT content_id, expires_at, created_at
	FROM subscriber_rentals
	WHERE subscriber_id = $1
	ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rentals: %w", err)
	}
	defer rows.Close()

	rentals := []subscriber.Rental{}
	for rows.Next() {
		var r subscriber.Rental
		if err := rows.Scan(&r.ContentID, &r.ExpiresAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		rentals = append(rentals, r)
	}
	return rentals, rows.Err()
}

// ---------------------------------------------------------------------------
// Billing subscription mirror
// ---------------------------------------------------------------------------

// UpsertSubscription writes the provider's view of a recurring subscription
// and refreshes the subscriber's derived status and active plans.
func (s *SubscriberService) UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	INSERT INTO subscriptions (id, subscriber_id, provider, provider_customer_id, provider_subscription_id, price_id, plan_id, status, current_period_end, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	ON CONFLICT (provider_subscription_id) DO UPDATE
	SET status = EXCLUDED.status,
	    price_id = EXCLUDED.price_id,
	    plan_id = EXCLUDED.plan_id,
	    current_period_end = EXCLUDED.current_period_end,
	    updated_at = NOW()
	`
	_, err := s.db.Exec(
		ctx,
		query,
		uuid.New().String(),
		sub.SubscriberID,
		sub.Provider,
		sub.ProviderCustomerID,
		sub.ProviderSubscriptionID,
		sub.PriceID,
		sub.PlanID,
		sub.Status,
		sub.CurrentPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return s.refreshSubscriberFromSubscription(ctx, sub)
}

// UpdateSubscriptionStatus handles provider lifecycle events that arrive
// without our subscriber id: the row is matched by provider subscription id
// and the derived subscriber state refreshed from it.
func (s *SubscriberService) UpdateSubscriptionStatus(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	UPDATE subscriptions
	SET status = $1, current_period_end = $2, updated_at = NOW()
	WHERE provider_subscription_id = $3
	RETURNING subscriber_id, plan_id
	`
	err := s.db.QueryRow(ctx, query, sub.Status, sub.CurrentPeriodEnd, sub.ProviderSubscriptionID).
		Scan(&sub.SubscriberID, &sub.PlanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("Subscription update for unknown provider subscription %s, skipping", sub.ProviderSubscriptionID)
			return nil
		}
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return s.refreshSubscriberFromSubscription(ctx, sub)
}

func (s *SubscriberService) refreshSubscriberFromSubscription(ctx context.Context, sub *subscription.Subscription) error {
	status := mapProviderStatus(sub.Status)

	var query string
	if status == subscriber.StatusActive || status == subscriber.StatusTrialing {
		query = `
		UPDATE subscribers
		SET subscription_status = $1,
		    active_plans = CASE WHEN $2 = '' OR $2 = ANY(active_plans) THEN active_plans ELSE array_append(active_plans, $2) END,
		    updated_at = NOW()
		WHERE id = $3
		`
	} else {
		query = `
		UPDATE subscribers
		SET subscription_status = $1,
		    active_plans = array_remove(active_plans, NULLIF($2, '')),
		    updated_at = NOW()
		WHERE id = $3
		`
	}

	_, err := s.db.Exec(ctx, query, status, sub.PlanID, sub.SubscriberID)
	if err != nil {
		return fmt.Errorf("failed to refresh subscriber entitlement: %w", err)
	}
	return nil
}

// mapProviderStatus folds Stripe and PayPal status vocabularies into ours.
func mapProviderStatus(providerStatus string) subscriber.SubscriptionStatus {
	switch providerStatus {
	case "active", "ACTIVE":
		return subscriber.StatusActive
	case "trialing":
		return subscriber.StatusTrialing
	case "past_due", "unpaid", "SUSPENDED":
		return subscriber.StatusPastDue
	case "canceled", "incomplete_expired", "CANCELLED", "EXPIRED":
		return subscriber.StatusCanceled
	default:
		return subscriber.StatusNone
	}
}

// GetSubscriberIDByCustomer maps a provider customer id back to our
// subscriber, for webhook events that only carry the customer.
func (s *SubscriberService) GetSubscriberIDByCustomer(ctx context.Context, customerID string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `SELECT subscriber_id FROM subscriptions WHERE provider_customer_id = $1 ORDER BY updated_at DESC LIMIT 1`, customerID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve customer: %w", err)
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func (s *SubscriberService) GetSessions(ctx context.Context, subscriberID string) ([]session.Entry, error) {
	query := `
	SELECT device_id, ip, user_agent, last_active
	FROM subscriber_sessions
	WHERE subscriber_id = $1
	ORDER BY last_active ASC
	`
	rows, err := s.db.Query(ctx, query, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	defer rows.Close()

	entries := []session.Entry{}
	for rows.Next() {
		var e session.Entry
		if err := rows.Scan(&e.DeviceID, &e.IP, &e.UserAgent, &e.LastActive); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplaceSessions rewrites the subscriber's full session list in one
// transaction. Last writer wins; the cap is advisory so no row lock is
// taken across the read-modify-write.
func (s *SubscriberService) ReplaceSessions(ctx context.Context, subscriberID string, entries []session.Entry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin session write: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM subscriber_sessions WHERE subscriber_id = $1`, subscriberID); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	for _, e := range entries {
		_, err := tx.Exec(
			ctx,
			`INSERT INTO subscriber_sessions (subscriber_id, device_id, ip, user_agent, last_active) VALUES ($1, $2, $3, $4, $5)`,
			subscriberID, e.DeviceID, e.IP, e.UserAgent, e.LastActive,
		)
		if err != nil {
			return fmt.Errorf("failed to write session: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ---------------------------------------------------------------------------
// Plans and device tokens
// ---------------------------------------------------------------------------

func (s *SubscriberService) GetPlansByID(ctx context.Context, planIDs []string) ([]plan.Plan, error) {
	if len(planIDs) == 0 {
		return []plan.Plan{}, nil
	}

	query := `
	SELECT id, name, stripe_price_id, price_cents, currency, interval, max_devices, created_at
	FROM plans
	WHERE id = ANY($1)
	`
	rows, err := s.db.Query(ctx, query, planIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get plans: %w", err)
	}
	defer rows.Close()

	return scanPlans(rows)
}

func (s *SubscriberService) ListPlans(ctx context.Context) ([]plan.Plan, error) {
	query := `
	SELECT id, name, stripe_price_id, price_cents, currency, interval, max_devices, created_at
	FROM plans
	ORDER BY price_cents ASC
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	return scanPlans(rows)
}

// GetPlanByPriceID maps a Stripe price back to the local plan tier.
func (s *SubscriberService) GetPlanByPriceID(ctx context.Context, priceID string) (*plan.Plan, error) {
	query := `
	SELECT id, name, stripe_price_id, price_cents, currency, interval, max_devices, created_at
	FROM plans
	WHERE stripe_price_id = $1
	`
	p := &plan.Plan{}
	err := s.db.QueryRow(ctx, query, priceID).Scan(
		&p.ID, &p.Name, &p.StripePriceID, &p.PriceCents, &p.Currency, &p.Interval, &p.MaxDevices, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

func scanPlans(rows pgx.Rows) ([]plan.Plan, error) {
	plans := []plan.Plan{}
	for rows.Next() {
		var p plan.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.StripePriceID, &p.PriceCents, &p.Currency, &p.Interval, &p.MaxDevices, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *SubscriberService) RegisterDeviceToken(ctx context.Context, subscriberID string, req *notification.RegisterDeviceRequest) error {
	query := `
	INSERT INTO device_tokens (subscriber_id, token, platform, created_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (token) DO UPDATE SET subscriber_id = EXCLUDED.subscriber_id, platform = EXCLUDED.platform
	`
	_, err := s.db.Exec(ctx, query, subscriberID, req.Token, req.Platform)
	if err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

func (s *SubscriberService) ListDeviceTokens(ctx context.Context) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT token, platform FROM device_tokens`)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	tokens := []notification.DeviceToken{}
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
