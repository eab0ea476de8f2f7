// Package postgres implements the interface for PostgreSQL.
package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hashvale/chiagate/lib/store"
)

type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in
// 'connection' and makes sure the schema exists.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	p := &Postgres{db: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Postgres) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS addresses (
			id SERIAL PRIMARY KEY,
			chain TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL,
			puzzle_hash TEXT NOT NULL DEFAULT '',
			UNIQUE (chain, address)
		)`,
		`CREATE TABLE IF NOT EXISTS watch_state (
			chain TEXT PRIMARY KEY,
			height BIGINT NOT NULL,
			seen TEXT NOT NULL DEFAULT '{}'
		)`,
	}

	for _, s := range stmts {
		if _, err := p.db.Exec(s); err != nil {
			return fmt.Errorf("cannot create schema: %w", err)
		}
	}

	return nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// AddAddress saves an address if the address does not already exist.
func (p *Postgres) AddAddress(a store.Address, chain string) ([]byte, error) {
	var id int64

	err := p.db.QueryRow(
		`INSERT INTO addresses (chain, name, address, puzzle_hash) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (chain, address) DO UPDATE SET name = addresses.name
		 RETURNING id`,
		chain, a.Name, a.Addr, a.PuzzleHash).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("could not insert address in db: %w", err)
	}

	return []byte(fmt.Sprintf("%d", id)), nil
}

// RemoveAddress deletes an address from the database.
func (p *Postgres) RemoveAddress(a store.Address, chain string) error {
	res, err := p.db.Exec(`DELETE FROM addresses WHERE chain = $1 AND address = $2`, chain, a.Addr)
	if err != nil {
		return fmt.Errorf("could not delete address from db: %w", err)
	}

	if n, _ := res.RowsAffected(); n != 1 {
		return store.ErrAddrNotFound
	}

	return nil
}

// GetAddresses returns the addresses monitored for the chains indicated in the chains slice.
func (p *Postgres) GetAddresses(chains []string) ([]store.ListenedAddresses, error) {
	query := `SELECT chain, id, name, address, puzzle_hash FROM addresses`

	var args []interface{}

	if len(chains) > 0 {
		query += ` WHERE chain = ANY($1)`

		args = append(args, pq.Array(chains))
	}

	query += ` ORDER BY chain`

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query addresses: %w", err)
	}
	defer rows.Close()

	byChain := map[string]*store.ListenedAddresses{}

	var order []string

	for rows.Next() {
		var (
			chain string
			id    int64
			a     store.Address
		)

		if err := rows.Scan(&chain, &id, &a.Name, &a.Addr, &a.PuzzleHash); err != nil {
			return nil, fmt.Errorf("could not scan address row: %w", err)
		}

		a.ID = []byte(fmt.Sprintf("%d", id))

		la, ok := byChain[chain]
		if !ok {
			la = &store.ListenedAddresses{Chain: chain}
			byChain[chain] = la
			order = append(order, chain)
		}

		la.Addr = append(la.Addr, a)
	}

	addrs := make([]store.ListenedAddresses, 0, len(order))
	for _, c := range order {
		addrs = append(addrs, *byChain[c])
	}

	return addrs, rows.Err()
}

// LoadWatcher loads from db the WatchState for the indicated chain.
func (p *Postgres) LoadWatcher(chain string) (ws store.WatchState, err error) {
	var seen string

	err = p.db.QueryRow(`SELECT height, seen FROM watch_state WHERE chain = $1`, chain).
		Scan(&ws.Height, &seen)
	if errors.Is(err, sql.ErrNoRows) {
		return ws, store.ErrDataNotFound
	}

	if err != nil {
		return ws, fmt.Errorf("could not load watch state: %w", err)
	}

	if err = json.Unmarshal([]byte(seen), &ws.Seen); err != nil {
		return ws, fmt.Errorf("could not decode watch state: %w", err)
	}

	return ws, nil
}

// SaveWatcher saves to db the WatchState for the indicated chain.
func (p *Postgres) SaveWatcher(chain string, ws store.WatchState) error {
	seen, err := json.Marshal(ws.Seen)
	if err != nil {
		return fmt.Errorf("could not encode watch state: %w", err)
	}

	_, err = p.db.Exec(
		`INSERT INTO watch_state (chain, height, seen) VALUES ($1, $2, $3)
		 ON CONFLICT (chain) DO UPDATE SET height = $2, seen = $3`,
		chain, ws.Height, string(seen))
	if err != nil {
		return fmt.Errorf("could not save watch state: %w", err)
	}

	return nil
}

// DeleteWatcher deletes from db the WatchState for the indicated chain.
func (p *Postgres) DeleteWatcher(chain string) error {
	_, err := p.db.Exec(`DELETE FROM watch_state WHERE chain = $1`, chain)

	return err
}
