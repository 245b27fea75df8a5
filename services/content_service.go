package services

import (
	"context"
	"errors"
	"fmt"

	"streamCastAPI/internal/types/content"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContentService owns the asset side of the entitlement store: content rows,
// live events and the Mux-driven status fields.
type ContentService struct {
	db *pgxpool.Pool
}

func NewContentService(db *pgxpool.Pool) *ContentService {
	return &ContentService{db: db}
}

const contentColumns = `id, title, description, access_type, required_plans, ppv_enabled, ppv_price_cents, rental_enabled, rental_price_cents, rental_duration_hours, mux_asset_id, mux_playback_id, status, created_at, updated_at`

func scanContent(row pgx.Row) (*content.Content, error) {
	c := &content.Content{}
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.AccessType, &c.RequiredPlans,
		&c.PPVEnabled, &c.PPVPriceCents, &c.RentalEnabled, &c.RentalPriceCents,
		&c.RentalDurationHours, &c.MuxAssetID, &c.MuxPlaybackID, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	return c, nil
}

const liveEventColumns = `id, title, description, access_type, required_plans, ppv_enabled, ppv_price_cents, mux_live_stream_id, stream_status, starts_at, created_at, updated_at`

func scanLiveEvent(row pgx.Row) (*content.LiveEvent, error) {
	e := &content.LiveEvent{}
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.AccessType, &e.RequiredPlans,
		&e.PPVEnabled, &e.PPVPriceCents, &e.MuxLiveStreamID, &e.StreamStatus,
		&e.StartsAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get live event: %w", err)
	}
	return e, nil
}

func (s *ContentService) ListContent(ctx context.Context) ([]*content.Content, error) {
	rows, err := s.db.Query(ctx, `SELECT `+contentColumns+` FROM content ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	items := []*content.Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (s *ContentService) GetContent(ctx context.Context, id string) (*content.Content, error) {
	return scanContent(s.db.QueryRow(ctx, `SELECT `+contentColumns+` FROM content WHERE id = $1`, id))
}

func (s *ContentService) ListLiveEvents(ctx context.Context) ([]*content.LiveEvent, error) {
	rows, err := s.db.Query(ctx, `SELECT `+liveEventColumns+` FROM live_events ORDER BY starts_at DESC NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("failed to list live events: %w", err)
	}
	defer rows.Close()

	events := []*content.LiveEvent{}
	for rows.Next() {
		e, err := scanLiveEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *ContentService) GetLiveEvent(ctx context.Context, id string) (*content.LiveEvent, error) {
	return scanLiveEvent(s.db.QueryRow(ctx, `SELECT `+liveEventColumns+` FROM live_events WHERE id = $1`, id))
}

// GetAssetProfile resolves an asset id to the fields the access evaluator
// needs. Content is checked first, then live events, so the two id spaces
// share one lookup surface.
func (s *ContentService) GetAssetProfile(ctx context.Context, assetID string) (*content.AccessProfile, error) {
	c, err := s.GetContent(ctx, assetID)
	if err == nil {
		return c.AccessProfile(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	e, err := s.GetLiveEvent(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return e.AccessProfile(), nil
}

// UpdateContentStatusByAssetID applies a Mux asset status transition and
// returns the affected content row so the caller can emit the matching
// event. Unknown asset ids return ErrNotFound; the webhook handler treats
// that as a skippable event, not a failure.
func (s *ContentService) UpdateContentStatusByAssetID(ctx context.Context, muxAssetID string, status content.VideoStatus, playbackID string) (*content.Content, error) {
	query := `
	UPDATE content
	SET status = $1,
	    mux_playback_id = COALESCE(NULLIF($2, ''), mux_playback_id),
	    updated_at = NOW()
	WHERE mux_asset_id = $3
	RETURNING ` + contentColumns
	return scanContent(s.db.QueryRow(ctx, query, status, playbackID, muxAssetID))
}

// UpdateLiveStreamStatus applies a Mux live-stream transition and returns
// the affected live event.
func (s *ContentService) UpdateLiveStreamStatus(ctx context.Context, muxLiveStreamID string, status content.StreamStatus) (*content.LiveEvent, error) {
	query := `
	UPDATE live_events
	SET stream_status = $1, updated_at = NOW()
	WHERE mux_live_stream_id = $2
	RETURNING ` + liveEventColumns
	return scanLiveEvent(s.db.QueryRow(ctx, query, status, muxLiveStreamID))
}
