package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"calltrack/internal/domain"
	"calltrack/internal/store"
)

// Store is the Postgres call repository. Every operation runs inside a
// circuit breaker: once the database starts refusing connections the breaker
// opens and callers get store.ErrUnavailable instead of piling up timeouts.
type Store struct {
	DB      *pgxpool.Pool
	Breaker *gobreaker.CircuitBreaker
}

func New(db *pgxpool.Pool) *Store {
	return &Store{
		DB: db,
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "calls-db",
			MaxRequests: 3,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		}),
	}
}

const callColumns = `
	id, customer_name, phone_number, workflow, status,
	COALESCE(provider_id, ''), scheduled_at, created_at, updated_at
`

func (s *Store) execute(fn func() (any, error)) (any, error) {
	res, err := s.Breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return res, err
}

func (s *Store) InsertCall(ctx context.Context, in store.CallInsert) (domain.Call, error) {
	res, err := s.execute(func() (any, error) {
		row := s.DB.QueryRow(ctx, `
			INSERT INTO calls (id, customer_name, phone_number, workflow, status, scheduled_at, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
			RETURNING `+callColumns,
			in.ID, in.CustomerName, in.PhoneNumber, in.Workflow, domain.StatusPending, in.ScheduledAt, in.Now)
		return scanCall(row)
	})
	if err != nil {
		return domain.Call{}, err
	}
	return res.(domain.Call), nil
}

func (s *Store) GetCall(ctx context.Context, id string) (domain.Call, bool, error) {
	res, err := s.execute(func() (any, error) {
		row := s.DB.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE id=$1`, id)
		c, err := scanCall(row)
		if errors.Is(err, pgx.ErrNoRows) {
			// absent, but not a store failure
			return lookup{}, nil
		}
		if err != nil {
			return nil, err
		}
		return lookup{call: c, found: true}, nil
	})
	if err != nil {
		return domain.Call{}, false, err
	}
	l := res.(lookup)
	return l.call, l.found, nil
}

// ListCalls returns calls newest-first, capped at limit.
func (s *Store) ListCalls(ctx context.Context, limit int) ([]domain.Call, error) {
	res, err := s.execute(func() (any, error) {
		rows, err := s.DB.Query(ctx, `
			SELECT `+callColumns+` FROM calls ORDER BY created_at DESC, id DESC LIMIT $1
		`, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		out := make([]domain.Call, 0, limit)
		for rows.Next() {
			c, err := scanCall(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Call), nil
}

// ClaimDispatch records the provider reference on a call that has never been
// dispatched. The WHERE provider_id IS NULL guard makes a second dispatch for
// the same call lose the claim instead of overwriting the reference.
func (s *Store) ClaimDispatch(ctx context.Context, id, providerID string, now time.Time) (bool, error) {
	res, err := s.execute(func() (any, error) {
		ct, err := s.DB.Exec(ctx, `
			UPDATE calls SET provider_id=$2, updated_at=$3
			WHERE id=$1 AND provider_id IS NULL
		`, id, providerID, now)
		if err != nil {
			return nil, err
		}
		return ct.RowsAffected() > 0, nil
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// FinalizeStatus applies a terminal status with the idempotency check and the
// write in one statement: only a row still PENDING is touched, and a stored
// provider_id is never overwritten (COALESCE keeps the first one).
func (s *Store) FinalizeStatus(ctx context.Context, in store.StatusFinalize) (bool, error) {
	res, err := s.execute(func() (any, error) {
		ct, err := s.DB.Exec(ctx, `
			UPDATE calls
			SET status=$2, provider_id=COALESCE(provider_id, $3), updated_at=$4
			WHERE id=$1 AND status=$5
		`, in.ID, in.Status, nullIfEmpty(in.ProviderID), in.Now, domain.StatusPending)
		if err != nil {
			return nil, err
		}
		return ct.RowsAffected() > 0, nil
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (s *Store) DeleteAllCalls(ctx context.Context) error {
	_, err := s.execute(func() (any, error) {
		_, err := s.DB.Exec(ctx, `DELETE FROM calls`)
		return nil, err
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func scanCall(row pgx.Row) (domain.Call, error) {
	var c domain.Call
	err := row.Scan(&c.ID, &c.CustomerName, &c.PhoneNumber, &c.Workflow, &c.Status,
		&c.ProviderID, &c.ScheduledAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type lookup struct {
	call  domain.Call
	found bool
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
