// Package capacity feeds hospital resource counters from a legacy
// hospital information system into the dispatch engine. Legacy HIS
// deployments expose a SQL Server reporting database and nothing else,
// so the adapter polls a capacity view and pushes changed rows through
// the same update path the HTTP API uses.
package capacity

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/rs/zerolog"

	"github.com/lifeline-ems/dispatch/internal/hospital"
	"github.com/lifeline-ems/dispatch/internal/shared/config"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Adapter polls the HIS capacity view and applies counter changes
type Adapter struct {
	cfg       config.CapacityFeedConfig
	hospitals *hospital.Service
	logger    zerolog.Logger

	db *sql.DB

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	lastPoll time.Time
	wg       sync.WaitGroup
}

// New creates a new capacity feed adapter
func New(cfg config.CapacityFeedConfig, hospitals *hospital.Service, logger zerolog.Logger) *Adapter {
	return &Adapter{
		cfg:       cfg,
		hospitals: hospitals,
		logger:    logger,
	}
}

// Start opens the HIS connection and begins polling
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("capacity feed already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.cfg.Host, a.cfg.Port, a.cfg.Database, a.cfg.User, a.cfg.Password)
	if a.cfg.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open capacity feed database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping capacity feed database: %w", err)
	}

	interval := time.Duration(a.cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	a.db = db
	a.running = true
	a.lastPoll = time.Now().Add(-interval)

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollLoop(pollCtx, interval)

	a.logger.Info().
		Str("table", a.cfg.Table).
		Dur("interval", interval).
		Msg("capacity feed started")

	return nil
}

// Stop halts polling and closes the connection
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.cancel()
	a.running = false
	db := a.db
	a.mu.Unlock()

	// The poll loop takes the mutex on every tick, so the wait must
	// happen with the lock released.
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if db != nil {
		db.Close()
	}
	return err
}

// Health checks HIS connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.Lock()
	running := a.running
	db := a.db
	a.mu.Unlock()

	if !running {
		return fmt.Errorf("capacity feed not running")
	}
	return db.PingContext(ctx)
}

func (a *Adapter) pollLoop(ctx context.Context, interval time.Duration) {
	defer a.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			since := a.lastPoll
			a.lastPoll = time.Now()
			a.mu.Unlock()

			if err := a.pollOnce(ctx, since); err != nil {
				a.logger.Warn().Err(err).Msg("capacity feed poll failed")
			}
		}
	}
}

// capacityRow is one changed row in the HIS capacity view
type capacityRow struct {
	organizationID string
	capacity       hospital.Capacity
}

// pollOnce applies every capacity row modified since the last poll
func (a *Adapter) pollOnce(ctx context.Context, since time.Time) error {
	query := fmt.Sprintf(`
		SELECT OrganizationID, FreeERs, ICUBeds, Physicians, Specialists
		FROM %s
		WHERE LastModified > @since
		ORDER BY LastModified ASC
	`, a.cfg.Table)

	rows, err := a.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return fmt.Errorf("failed to query capacity view: %w", err)
	}
	defer rows.Close()

	var changes []capacityRow
	for rows.Next() {
		var row capacityRow
		err := rows.Scan(
			&row.organizationID,
			&row.capacity.FreeERs,
			&row.capacity.ICUBeds,
			&row.capacity.Physicians,
			&row.capacity.Specialists,
		)
		if err != nil {
			return fmt.Errorf("failed to scan capacity row: %w", err)
		}
		changes = append(changes, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, row := range changes {
		if err := a.apply(ctx, row); err != nil {
			a.logger.Warn().Err(err).
				Str("organization_id", row.organizationID).
				Msg("failed to apply capacity row")
		}
	}

	return nil
}

// apply resolves the hospital by its HIS organization ID and pushes the
// counters through the normal update path, readiness recompute included.
func (a *Adapter) apply(ctx context.Context, row capacityRow) error {
	orgID, err := types.ParseID(row.organizationID)
	if err != nil {
		return fmt.Errorf("capacity row has invalid organization ID: %w", err)
	}

	h, err := a.hospitals.LookupByOrganization(ctx, orgID)
	if err != nil {
		return err
	}

	_, err = a.hospitals.UpdateCapacity(ctx, h.ID, row.capacity)
	return err
}
