// Package types contains the common full-node types shared by the chain
// clients and the services.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashvale/chiagate/lib/clvm"
	"github.com/hashvale/chiagate/lib/util"
)

// Bytes32 is a 32-byte hash, rendered as 0x-prefixed hex on the wire.
type Bytes32 [32]byte

// Bytes32FromHex parses a 0x-prefixed or bare hex string into a Bytes32.
func Bytes32FromHex(s string) (Bytes32, error) {
	var b Bytes32

	raw, err := hex.DecodeString(util.Strip0x(s))
	if err != nil {
		return b, fmt.Errorf("invalid hash %q: %w", s, err)
	}

	if len(raw) != len(b) {
		return b, fmt.Errorf("invalid hash %q: %w", s, ErrHashLength)
	}

	copy(b[:], raw)

	return b, nil
}

// String returns the 0x-prefixed hex form.
func (b Bytes32) String() string {
	return "0x" + hex.EncodeToString(b[:])
}

// MarshalJSON implements json.Marshaler.
func (b Bytes32) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	v, err := Bytes32FromHex(s)
	if err != nil {
		return err
	}

	*b = v

	return nil
}

// Coin is the fundamental chain object: value locked under a puzzle hash.
type Coin struct {
	ParentCoinInfo Bytes32 `json:"parent_coin_info"`
	PuzzleHash     Bytes32 `json:"puzzle_hash"`
	Amount         uint64  `json:"amount"`
}

// ID returns the coin identity, sha256 over the parent id, the puzzle hash
// and the canonical atom form of the amount.
func (c Coin) ID() Bytes32 {
	h := sha256.New()
	h.Write(c.ParentCoinInfo[:])
	h.Write(c.PuzzleHash[:])
	h.Write(clvm.IntToBytes(c.Amount))

	var id Bytes32
	h.Sum(id[:0])

	return id
}

// CoinRecord is a coin plus its chain metadata.
type CoinRecord struct {
	Coin                Coin   `json:"coin"`
	ConfirmedBlockIndex uint32 `json:"confirmed_block_index"`
	Spent               bool   `json:"spent"`
	SpentBlockIndex     uint32 `json:"spent_block_index"`
	Timestamp           uint64 `json:"timestamp"`
	Coinbase            bool   `json:"coinbase"`
}

// CoinEvent is the notification the watcher publishes when a monitored
// address gains a coin or one of its coins is spent.
type CoinEvent struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	CoinID  string `json:"coin_id"`
	Amount  uint64 `json:"amount"`
	Height  uint32 `json:"height"`
	Spent   bool   `json:"spent"`
}

// PuzzleSolution is the reveal of a spent coin: the coin itself plus the
// serialized puzzle and solution programs, hex-encoded in their canonical
// wire form.
type PuzzleSolution struct {
	Coin         Coin   `json:"coin"`
	PuzzleReveal string `json:"puzzle_reveal"`
	Solution     string `json:"solution"`
}

// SpendBundle is pushed to the mempool as-is. The gateway treats it as
// opaque JSON: validation happens in the full node.
type SpendBundle map[string]interface{}

// NetworkInfo identifies the network a node is serving.
type NetworkInfo struct {
	NetworkName   string `json:"network_name"`
	NetworkPrefix string `json:"network_prefix"`
}

// RPCError carries the backend status and message of a failed full-node
// call. One coin's RPCError must not abort work on its siblings.
type RPCError struct {
	Method  string
	Status  int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s: status %d: %s", e.Method, e.Status, e.Message)
}

// Errors returned by chain clients.
var (
	ErrHashLength = errors.New("hash must be 32 bytes")
	ErrNoChain    = errors.New("chain not available")
	ErrRejected   = errors.New("transaction rejected by the full node")
)
