package workers

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StartCleanupWorker sweeps entitlement-store hygiene on a timer: rental
// rows past their expiry plus a grace period, and sessions idle for longer
// than sessionIdleExpiry. Access checks never depend on this sweep (rental
// expiry is evaluated at check time), so a missed tick costs nothing but
// table bloat.
func StartCleanupWorker(db *pgxpool.Pool, sessionIdleExpiry time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Hour)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cleanupExpiredGrants(db, sessionIdleExpiry)
			case <-stop:
				return
			}
		}
	}()
}

func cleanupExpiredGrants(db *pgxpool.Pool, sessionIdleExpiry time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 24h grace keeps just-expired rentals visible in purchase history views.
	tag, err := db.Exec(ctx, `DELETE FROM subscriber_rentals WHERE expires_at < NOW() - INTERVAL '24 hours'`)
	if err != nil {
		log.Printf("Cleanup: failed to delete expired rentals: %v", err)
	} else if tag.RowsAffected() > 0 {
		log.Printf("Cleanup: removed %d expired rental(s)", tag.RowsAffected())
	}

	cutoff := time.Now().Add(-sessionIdleExpiry)
	tag, err = db.Exec(ctx, `DELETE FROM subscriber_sessions WHERE last_active < $1`, cutoff)
	if err != nil {
		log.Printf("Cleanup: failed to delete stale sessions: %v", err)
	} else if tag.RowsAffected() > 0 {
		log.Printf("Cleanup: removed %d stale session(s)", tag.RowsAffected())
	}
}
