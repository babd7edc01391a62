package pgstore

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/position"
)

const createLocationsTableSQL = `
CREATE TABLE IF NOT EXISTS locations (
  id bigserial PRIMARY KEY,
  channel_id text NOT NULL,
  latitude double precision NOT NULL,
  longitude double precision NOT NULL,
  accuracy double precision NOT NULL,
  captured_at timestamptz NOT NULL
)`

const createLocationsIndexSQL = `
CREATE INDEX IF NOT EXISTS locations_channel_captured_idx ON locations (channel_id, captured_at, id)`

const createContactsTableSQL = `
CREATE TABLE IF NOT EXISTS contacts (
  channel_id text PRIMARY KEY,
  name text NOT NULL,
  phone text NOT NULL
)`

const insertLocationSQL = `
INSERT INTO locations (channel_id, latitude, longitude, accuracy, captured_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

const selectLocationsSQL = `
SELECT id, latitude, longitude, accuracy, captured_at
FROM locations WHERE channel_id = $1
ORDER BY captured_at, id`

const deleteLocationsSQL = `DELETE FROM locations WHERE channel_id = $1`

type Store struct {
	db  *pgxpool.Pool
	log log.Logger
}

func NewStore(db *pgxpool.Pool) *Store {
	o := &Store{}
	o.db = db
	o.log = log.DefaultLogger
	o.log.Context = log.NewContext(nil).Str("module", "pgstore").Value()
	return o
}

func (st *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createLocationsTableSQL, createLocationsIndexSQL, createContactsTableSQL} {
		if _, err := st.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Insert writes one sample and sets its Seq from the bigserial id, which orders inserts
// within a channel.
func (st *Store) Insert(ctx context.Context, s *position.Sample) error {
	var id int64
	err := st.db.QueryRow(ctx, insertLocationSQL, s.ChannelId, s.Latitude, s.Longitude, s.Accuracy, s.CapturedAt).Scan(&id)
	if err != nil {
		st.log.Error().Err(err).EmbedObject(s).Msg("error inserting location")
		return err
	}
	s.Seq = uint64(id)
	return nil
}

func (st *Store) QueryOrdered(ctx context.Context, channel string) ([]position.Sample, error) {
	rows, err := st.db.Query(ctx, selectLocationsSQL, channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	samples := make([]position.Sample, 0)
	for rows.Next() {
		var id int64
		s := position.Sample{ChannelId: channel}
		if err := rows.Scan(&id, &s.Latitude, &s.Longitude, &s.Accuracy, &s.CapturedAt); err != nil {
			return nil, err
		}
		s.Seq = uint64(id)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (st *Store) DeleteAll(ctx context.Context, channel string) error {
	ct, err := st.db.Exec(ctx, deleteLocationsSQL, channel)
	if err != nil {
		st.log.Error().Err(err).Str("channel", channel).Msg("error deleting history")
		return err
	}
	st.log.Debug().Str("channel", channel).Int64("deleted", ct.RowsAffected()).Msg("history deleted")
	return nil
}

func (st *Store) withTx(ctx context.Context, f func(tx pgx.Tx) error) error {
	tx, err := st.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
