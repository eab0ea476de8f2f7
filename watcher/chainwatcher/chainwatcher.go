// Package chainwatcher keeps the per-chain watching state: the monitored
// addresses and the coins already seen for them.
package chainwatcher

import (
	"errors"
	"log"
	"sync"

	"github.com/hashvale/chiagate/lib/chain/types"
	"github.com/hashvale/chiagate/lib/store"
)

// Status possible values, control whether a ChainWatcher is working or is/has to stop.
const (
	WORK int = 0
	STOP int = 1
)

// ChainWatcher contains the fields and data structures required to manage the
// watching of one chain.
type ChainWatcher struct {
	l      sync.Mutex // l is a mutex to ensure concurrent updating of addresses in the map
	status int
	Height uint32                   // highest confirmed block height seen
	Seen   map[string]bool          // coin id -> spent flag of every coin already reported
	Map    map[string]types.Bytes32 // monitored address -> its puzzle hash
}

// New gets the listened addresses slice and returns a ChainWatcher, restoring
// the seen-coin state from db when present.
func New(chain string, l []store.ListenedAddresses, db store.DB) (*ChainWatcher, error) {
	cw := ChainWatcher{
		status: WORK,
		Seen:   make(map[string]bool),
		Map:    make(map[string]types.Bytes32),
	}

	if db != nil {
		s, err := db.LoadWatcher(chain)

		switch {
		case err == nil:
			cw.fromStore(s)
		case errors.Is(err, store.ErrDataNotFound):
			// nothing saved yet, start fresh
		default:
			return nil, err
		}
	}

	if len(l) == 1 {
		for _, a := range l[0].Addr {
			ph, err := types.Bytes32FromHex(a.PuzzleHash)
			if err != nil {
				log.Printf("[%s] skipping stored address %s with bad puzzle hash: %v", chain, a.Addr, err)

				continue
			}

			cw.Map[a.Addr] = ph
		}
	}

	log.Printf("[%s] chainwatcher.New height:%d addrs:%d seen:%d", chain, cw.Height, len(cw.Map), len(cw.Seen))

	return &cw, nil
}

// Diff compares the coin records of one address against the seen set and
// returns an event per new or newly spent coin, updating the set.
func (c *ChainWatcher) Diff(chain, addr string, recs []types.CoinRecord) []types.CoinEvent {
	c.l.Lock()
	defer c.l.Unlock()

	var evs []types.CoinEvent

	for _, rec := range recs {
		id := rec.Coin.ID().String()

		spent, ok := c.Seen[id]
		if ok && spent == rec.Spent {
			continue
		}

		height := rec.ConfirmedBlockIndex
		if rec.Spent {
			height = rec.SpentBlockIndex
		}

		evs = append(evs, types.CoinEvent{
			Chain:   chain,
			Address: addr,
			CoinID:  id,
			Amount:  rec.Coin.Amount,
			Height:  height,
			Spent:   rec.Spent,
		})

		c.Seen[id] = rec.Spent

		if height > c.Height {
			c.Height = height
		}
	}

	return evs
}

// Addresses returns a copy of the monitored address map.
func (c *ChainWatcher) Addresses() map[string]types.Bytes32 {
	c.l.Lock()
	defer c.l.Unlock()

	m := make(map[string]types.Bytes32, len(c.Map))
	for a, ph := range c.Map {
		m[a] = ph
	}

	return m
}

// Add adds an address and its puzzle hash to the monitoring map.
func (c *ChainWatcher) Add(addr string, ph types.Bytes32) {
	c.l.Lock()
	defer c.l.Unlock()
	c.Map[addr] = ph
}

// Del deletes a monitored address from the map returning its puzzle hash and an ok flag.
func (c *ChainWatcher) Del(addr string) (ph types.Bytes32, ok bool) {
	c.l.Lock()
	defer c.l.Unlock()
	ph, ok = c.Map[addr]
	delete(c.Map, addr)

	return
}

// ToStore returns a store.WatchState struct to be saved to store.
func (c *ChainWatcher) ToStore() store.WatchState {
	c.l.Lock()
	defer c.l.Unlock()

	seen := make(map[string]bool, len(c.Seen))
	for k, v := range c.Seen {
		seen[k] = v
	}

	return store.WatchState{
		Height: c.Height,
		Seen:   seen,
	}
}

// fromStore loads the ChainWatcher with the values read from store.
func (c *ChainWatcher) fromStore(s store.WatchState) {
	c.Height = s.Height

	if s.Seen != nil {
		c.Seen = s.Seen
	}
}

// Stop sets status to STOP.
func (c *ChainWatcher) Stop() {
	c.l.Lock()
	c.status = STOP
	c.l.Unlock()
}

// Start sets status to WORK.
func (c *ChainWatcher) Start() {
	c.l.Lock()
	c.status = WORK
	c.l.Unlock()
}

// Status returns the current ChainWatcher status.
func (c *ChainWatcher) Status() int {
	c.l.Lock()
	defer c.l.Unlock()

	return c.status
}
