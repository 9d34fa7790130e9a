package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DBObserver times a logical database operation.
type DBObserver interface {
	ObserveDB(op string, fn func() error) error
}

type passthrough struct{}

func (passthrough) ObserveDB(_ string, fn func() error) error { return fn() }

type PostgresStore struct {
	pool *pgxpool.Pool
	obs  DBObserver
}

func NewPostgresStore(pool *pgxpool.Pool, obs DBObserver) *PostgresStore {
	if obs == nil {
		obs = passthrough{}
	}
	return &PostgresStore{pool: pool, obs: obs}
}

func (s *PostgresStore) Append(ctx context.Context, e Event) error {
	return s.obs.ObserveDB("audit_append", func() error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO portal_audit(id, occurred_at, actor, address, role, action, target, outcome, detail, request_id, client_ip, device)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			e.ID, e.Timestamp, e.Actor, e.Address, e.Role, string(e.Action), e.Target, string(e.Outcome), e.Detail, e.RequestID, e.ClientIP, e.Device)
		return err
	})
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	limit = ClampLimit(limit)
	out := make([]Event, 0, limit)

	err := s.obs.ObserveDB("audit_list_recent", func() error {
		rows, err := s.pool.Query(ctx,
			`SELECT id, occurred_at, actor, address, role, action, target, outcome, detail, request_id, client_ip, device
			FROM portal_audit
			ORDER BY occurred_at DESC, id DESC
			LIMIT $1`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e       Event
				action  string
				outcome string
			)

			if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.Address, &e.Role, &action, &e.Target, &outcome, &e.Detail, &e.RequestID, &e.ClientIP, &e.Device); err != nil {
				return err
			}

			e.Action = Action(action)
			e.Outcome = Outcome(outcome)
			out = append(out, e)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
