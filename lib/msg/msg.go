// Package msg defines the interface for different message brokers.
package msg

import (
	"sync"

	"github.com/hashvale/chiagate/lib/chain/types"
)

// Types of object for watch requests.
const (
	EXIT    = -1
	ADDRESS = 0
)

// Actions to be applied to objects for watch requests.
const (
	LISTEN   = 0
	UNLISTEN = 1
)

// WatchReq defines the message that the gateway service publishes to the
// watcher to ask to monitor an object.
type WatchReq struct {
	Chain string `json:"chain"`
	Type  int    `json:"type"` // type of object
	Obj   string `json:"obj"`
	Act   int    `json:"act"` // action to be applied
}

type MsgBroker interface {
	Setup(interface{}) error
	Close() error

	// methods for gateway service
	SendRequest(chain string, r WatchReq) error
	GetEvents(chain string, mut *sync.Mutex) (<-chan types.CoinEvent, <-chan error, error)

	// methods for watcher service
	GetReqs(chain string, mut *sync.Mutex) (<-chan WatchReq, <-chan error, error)
	SendEvents(chain string, evs []types.CoinEvent) error
}
