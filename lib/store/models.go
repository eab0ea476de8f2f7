package store

// Address contains the fields for an address saved to DB. Addr is the
// bech32m form, PuzzleHash its decoded 0x-prefixed hex.
type Address struct {
	ID         []byte `json:"id"`
	Name       string `json:"name"`
	Addr       string `json:"addr"`
	PuzzleHash string `json:"puzzle_hash"`
}

// ListenedAddresses contains the fields of monitored addresses saved to DB,
// grouped per chain.
type ListenedAddresses struct {
	Chain string    `json:"chain"`
	Addr  []Address `json:"addresses"`
}

// WatchState contains the watcher's scan position for one chain: the highest
// block already scanned and the ids of the coins already reported, so a
// restart does not replay events.
type WatchState struct {
	Height uint32          `json:"height" bson:"height"`
	Seen   map[string]bool `json:"seen" bson:"seen"`
}
