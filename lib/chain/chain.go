// Package chain defines the interface for full-node backends and builds the
// registry of configured chains.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hashvale/chiagate/lib/chain/fullnode"
	"github.com/hashvale/chiagate/lib/chain/types"
	"github.com/hashvale/chiagate/lib/config"
)

// Chain is a full-node backend plus the static network parameters the
// services need. Implementations must be safe for concurrent use.
type Chain interface {
	// member-type methods
	ID() string             // hex chain id used in requests, ie "0x01"
	NetworkName() string    // ie "mainnet"
	NetworkPrefix() string  // address prefix, ie "xch"
	NFTStartHeight() uint32 // first block worth scanning for NFT hints
	AvgBlock() int          // average block interval in seconds
	// methods
	Close()
	GetCoinRecordsByPuzzleHash(ctx context.Context, puzzleHash types.Bytes32,
		includeSpent bool) ([]types.CoinRecord, error)
	GetCoinRecordsByHint(ctx context.Context, hint types.Bytes32, includeSpent bool,
		startHeight uint32) ([]types.CoinRecord, error)
	GetPuzzleAndSolution(ctx context.Context, coinID types.Bytes32, height uint32) (types.PuzzleSolution, error)
	PushTX(ctx context.Context, spendBundle types.SpendBundle) (string, error)
	RawFetch(ctx context.Context, method string, params map[string]interface{}) (json.RawMessage, error)
}

// node binds a full-node client to its configured network parameters.
type node struct {
	*fullnode.Client
	id          string
	name        string
	prefix      string
	startHeight uint32
	avgBlock    int
}

func (n *node) ID() string             { return n.id }
func (n *node) NetworkName() string    { return n.name }
func (n *node) NetworkPrefix() string  { return n.prefix }
func (n *node) NFTStartHeight() uint32 { return n.startHeight }

// AvgBlock returns the average block interval in seconds.
func (n *node) AvgBlock() int {
	if n.avgBlock <= 0 {
		return 19
	}

	return n.avgBlock
}

// Init loads a client for every configured chain into a map keyed by hex
// chain id, checking connectivity with get_network_info on the way.
func Init(ctx context.Context, cfgs []config.ChainConfig) (map[string]Chain, error) {
	m := make(map[string]Chain)

	for _, row := range cfgs {
		var (
			cl  *fullnode.Client
			err error
		)

		switch {
		case row.ProxyRPCURL != "":
			cl = fullnode.New(row.ProxyRPCURL)
		case row.RPCURL != "" && row.CertPath != "" && row.KeyPath != "":
			if cl, err = fullnode.NewWithCert(row.RPCURL, row.CertPath, row.KeyPath); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("chain %s: %w", row.ID, config.ErrNoRPCConfig)
		}

		// check the node answers before accepting the chain
		ni, err := cl.GetNetworkInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", row.ID, err)
		}

		if ni.NetworkName != "" && ni.NetworkName != row.NetworkName {
			log.Printf("[%s] node reports network %q, config says %q", row.ID, ni.NetworkName, row.NetworkName)
		}

		m[row.ID] = &node{
			Client:      cl,
			id:          row.ID,
			name:        row.NetworkName,
			prefix:      row.NetworkPrefix,
			startHeight: row.NFTStartHeight,
			avgBlock:    row.AvgBlockSeconds,
		}
	}

	return m, nil
}

// End closes gracefully all the chain clients opened.
func End(m map[string]Chain) {
	for _, c := range m {
		c.Close()
	}
}
