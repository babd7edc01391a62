package pgstore

import (
	"context"

	"github.com/jackc/pgx/v4"
	"nuha.dev/locshare/internal/contact"
	"nuha.dev/locshare/internal/store"
)

func (st *Store) Lookup(ctx context.Context, channel string) (*contact.Contact, error) {
	c := &contact.Contact{ChannelId: channel}
	err := st.db.QueryRow(ctx, `SELECT name, phone FROM contacts WHERE channel_id = $1`, channel).Scan(&c.Name, &c.Phone)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		st.log.Error().Err(err).Str("channel", channel).Msg("error looking up contact")
		return nil, err
	}
	return c, nil
}

func (st *Store) ListContacts(ctx context.Context) ([]contact.Contact, error) {
	rows, err := st.db.Query(ctx, `SELECT channel_id, name, phone FROM contacts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	contacts := make([]contact.Contact, 0)
	for rows.Next() {
		var c contact.Contact
		if err := rows.Scan(&c.ChannelId, &c.Name, &c.Phone); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (st *Store) CreateContact(ctx context.Context, c *contact.Contact) error {
	ct, err := st.db.Exec(ctx, `INSERT INTO contacts (channel_id, name, phone) VALUES ($1, $2, $3) ON CONFLICT (channel_id) DO NOTHING`, c.ChannelId, c.Name, c.Phone)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return store.ErrContactExists
	}
	return nil
}

func (st *Store) UpdateContact(ctx context.Context, c *contact.Contact) error {
	ct, err := st.db.Exec(ctx, `UPDATE contacts SET name = $1, phone = $2 WHERE channel_id = $3`, c.Name, c.Phone, c.ChannelId)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return store.ErrContactNotFound
	}
	return nil
}

// DeleteContact removes the contact and the channel's history in one transaction.
func (st *Store) DeleteContact(ctx context.Context, channel string) error {
	return st.withTx(ctx, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `DELETE FROM contacts WHERE channel_id = $1`, channel)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return store.ErrContactNotFound
		}
		_, err = tx.Exec(ctx, deleteLocationsSQL, channel)
		return err
	})
}
