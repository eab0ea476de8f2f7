package watcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashvale/chiagate/lib/address"
	"github.com/hashvale/chiagate/lib/chain"
	"github.com/hashvale/chiagate/lib/chain/types"
	"github.com/hashvale/chiagate/lib/config"
	"github.com/hashvale/chiagate/lib/msg"
	"github.com/hashvale/chiagate/lib/store"
	"github.com/hashvale/chiagate/watcher/chainwatcher"
)

// fixture puzzle hash of the monitored address.
var fixPH = types.Bytes32{0x01, 0x02, 0x03, 0x04}

// fakeDB implements store.DB in memory so the tests do not need a running
// database.
type fakeDB struct {
	mu    sync.Mutex
	addrs map[string][]store.Address
	state map[string]store.WatchState
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		addrs: map[string][]store.Address{},
		state: map[string]store.WatchState{},
	}
}

func (d *fakeDB) AddAddress(a store.Address, chain string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addrs[chain] = append(d.addrs[chain], a)

	return []byte(a.Addr), nil
}

func (d *fakeDB) RemoveAddress(a store.Address, chain string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.addrs[chain]
	for i := range list {
		if list[i].Addr == a.Addr {
			d.addrs[chain] = append(list[:i], list[i+1:]...)

			return nil
		}
	}

	return store.ErrAddrNotFound
}

func (d *fakeDB) GetAddresses(chains []string) ([]store.ListenedAddresses, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []store.ListenedAddresses

	for c, list := range d.addrs {
		if len(chains) > 0 && chains[0] != c {
			continue
		}

		out = append(out, store.ListenedAddresses{Chain: c, Addr: list})
	}

	return out, nil
}

func (d *fakeDB) LoadWatcher(chain string) (store.WatchState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ws, ok := d.state[chain]
	if !ok {
		return ws, store.ErrDataNotFound
	}

	return ws, nil
}

func (d *fakeDB) SaveWatcher(chain string, ws store.WatchState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state[chain] = ws

	return nil
}

func (d *fakeDB) DeleteWatcher(chain string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.state, chain)

	return nil
}

// fakeBroker implements msg.MsgBroker in memory, honouring the one-request-
// at-a-time mutex protocol of the amqp broker.
type fakeBroker struct {
	mu    sync.Mutex
	evs   []types.CoinEvent
	reqCh chan msg.WatchReq
	mut   *sync.Mutex
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{reqCh: make(chan msg.WatchReq)}
}

func (b *fakeBroker) Setup(interface{}) error { return nil }

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) SendRequest(chain string, r msg.WatchReq) error {
	b.reqCh <- r
	b.mut.Lock() // wait for the watcher to finish processing the request

	return nil
}

func (b *fakeBroker) GetEvents(chain string, mut *sync.Mutex) (<-chan types.CoinEvent, <-chan error, error) {
	return nil, nil, nil
}

func (b *fakeBroker) GetReqs(chain string, mut *sync.Mutex) (<-chan msg.WatchReq, <-chan error, error) {
	b.mut = mut

	return b.reqCh, make(chan error), nil
}

func (b *fakeBroker) SendEvents(chain string, evs []types.CoinEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evs = append(b.evs, evs...)

	return nil
}

func (b *fakeBroker) events() []types.CoinEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.CoinEvent, len(b.evs))
	copy(out, b.evs)

	return out
}

// mockNode answers get_network_info and serves a fixed coin set for fixPH.
func mockNode(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var res map[string]interface{}

	switch r.URL.Path {
	case "/get_network_info":
		res = map[string]interface{}{"success": true, "network_name": "mainnet", "network_prefix": "xch"}
	case "/get_coin_records_by_puzzle_hash":
		res = map[string]interface{}{"success": true, "coin_records": []interface{}{
			map[string]interface{}{
				"coin": map[string]interface{}{
					"parent_coin_info": (types.Bytes32{0xaa}).String(),
					"puzzle_hash":      fixPH.String(),
					"amount":           750,
				},
				"confirmed_block_index": 100,
				"spent":                 false,
			},
		}}
	default:
		res = map[string]interface{}{"success": false, "error": "unknown method " + r.URL.Path}
	}

	_ = json.NewEncoder(w).Encode(res)
}

func newTestChains(t *testing.T, url string) map[string]chain.Chain {
	t.Helper()

	bc, err := chain.Init(context.Background(), []config.ChainConfig{{
		ID: "0x01", NetworkName: "mainnet", NetworkPrefix: "xch",
		ProxyRPCURL: url, AvgBlockSeconds: 1,
	}})
	if err != nil {
		t.Fatalf("Error initialising chains:%e", err)
	}

	return bc
}

// TestWatchChain polls the mock node for a monitored address and checks the
// coin event reaches the broker exactly once.
func TestWatchChain(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(mockNode))
	defer mock.Close()

	bc := newTestChains(t, mock.URL)
	defer chain.End(bc)

	db := newFakeDB()
	mb := newFakeBroker()

	addr, err := address.Encode("xch", fixPH)
	if err != nil {
		t.Fatalf("Error encoding fixture address:%e", err)
	}

	w := New("", db, mb, bc)

	if w.cwm["0x01"], err = chainwatcher.New("0x01", []store.ListenedAddresses{
		{Chain: "0x01", Addr: []store.Address{{Addr: addr, PuzzleHash: fixPH.String()}}},
	}, db); err != nil {
		t.Fatalf("chainwatcher.New failed:%e", err)
	}

	ret := make(chan string, 1)
	w.WatchChain("0x01", ret)

	// let the watcher poll a couple of times
	time.Sleep(2500 * time.Millisecond)
	w.StopWatcher()
	t.Logf("WatchChain finished: %s", <-ret)

	evs := mb.events()
	if len(evs) != 1 {
		t.Fatalf("Error: got %d events expected 1: %+v", len(evs), evs)
	}

	if evs[0].Chain != "0x01" || evs[0].Address != addr || evs[0].Amount != 750 ||
		evs[0].Height != 100 || evs[0].Spent {
		t.Errorf("Error in event: %+v", evs[0])
	}

	// the seen state must have been persisted
	ws, err := db.LoadWatcher("0x01")
	if err != nil || len(ws.Seen) != 1 {
		t.Errorf("Error in saved state: %+v err:%e", ws, err)
	}
}

// TestManageWatchRequests feeds listen/unlisten requests through the broker
// and checks the monitoring map and DB follow.
func TestManageWatchRequests(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(mockNode))
	defer mock.Close()

	bc := newTestChains(t, mock.URL)
	defer chain.End(bc)

	db := newFakeDB()
	mb := newFakeBroker()

	addr, err := address.Encode("xch", fixPH)
	if err != nil {
		t.Fatalf("Error encoding fixture address:%e", err)
	}

	w := New("", db, mb, bc)

	if w.cwm["0x01"], err = chainwatcher.New("0x01", nil, db); err != nil {
		t.Fatalf("chainwatcher.New failed:%e", err)
	}

	if err = w.ManageWatchRequests("0x01"); err != nil {
		t.Fatalf("ManageWatchRequests err:%e", err)
	}

	steps := []struct {
		req      msg.WatchReq
		mapLen   int
		addrInDB int
	}{
		{msg.WatchReq{Chain: "0x01", Type: msg.ADDRESS, Obj: addr, Act: msg.LISTEN}, 1, 1},
		{msg.WatchReq{Chain: "0x01", Type: msg.ADDRESS, Obj: addr, Act: msg.UNLISTEN}, 0, 0},
		{msg.WatchReq{Chain: "0x01", Type: msg.ADDRESS, Obj: "notanaddress", Act: msg.LISTEN}, 0, 0},
		{msg.WatchReq{Chain: "0x99", Type: msg.ADDRESS, Obj: addr, Act: msg.LISTEN}, 0, 0},
	}

	for i, s := range steps {
		if err = mb.SendRequest("0x01", s.req); err != nil {
			t.Errorf("SendRequest %d err:%e", i, err)
		}

		time.Sleep(50 * time.Millisecond) // let the go routine finish managing the request

		if got := len(w.cwm["0x01"].Addresses()); got != s.mapLen {
			t.Errorf("step %d: map len %d expected %d", i, got, s.mapLen)
		}

		addrs, _ := db.GetAddresses([]string{"0x01"})
		n := 0

		if len(addrs) == 1 {
			n = len(addrs[0].Addr)
		}

		if n != s.addrInDB {
			t.Errorf("step %d: db has %d addresses expected %d", i, n, s.addrInDB)
		}
	}
}
