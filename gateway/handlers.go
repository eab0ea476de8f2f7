package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/hashvale/chiagate/lib/address"
	"github.com/hashvale/chiagate/lib/chain"
	"github.com/hashvale/chiagate/lib/chain/types"
	"github.com/hashvale/chiagate/lib/clvm"
	"github.com/hashvale/chiagate/lib/msg"
	"github.com/hashvale/chiagate/lib/nft"
	"github.com/hashvale/chiagate/lib/store"
)

// Errors returned to client requests.
var (
	ErrBadMethod    = errors.New("bad method in request")
	ErrBadRequest   = errors.New("bad request")
	ErrNoAddr       = errors.New("undefined address - missing query: ?address=<bech32m address>")
	ErrNoChain      = errors.New("chain not available")
	ErrRPCForbidden = errors.New("rpc method not allowed")
)

// Response defines the data structure returned to the client making the http request.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// homeHandler just replies a welcome message to the client.
func (g *Gateway) homeHandler(rw http.ResponseWriter, r *http.Request) {
	var res Response
	// log request
	log.Printf("httpreq from %v %s\n", r.RemoteAddr, r.RequestURI)
	// just reply a welcome message
	res.Body = "Hello, this is your Chia full-node gateway!"
	// reply
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	_ = json.NewEncoder(rw).Encode(res)
}

// network describes one configured chain to the client.
type network struct {
	ID     string `json:"id"`
	Name   string `json:"network_name"`
	Prefix string `json:"network_prefix"`
}

// networksHandler replies the chains available to the gateway.
func (g *Gateway) networksHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	pl := make([]network, 0, len(g.bc))

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(pl)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s res:%+v err:%e\n", r.RemoteAddr, r.RequestURI, pl, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	apiRequests.WithLabelValues("networks").Inc()

	for _, c := range g.bc {
		pl = append(pl, network{ID: c.ID(), Name: c.NetworkName(), Prefix: c.NetworkPrefix()})
	}
}

// chainFromForm selects the chain from the "?chain=0x01" query, falling back
// to the first configured chain when absent.
func (g *Gateway) chainFromForm(r *http.Request) (chain.Chain, error) {
	id := g.defChain
	if tmp, ok := r.Form["chain"]; ok && len(tmp) == 1 {
		id = tmp[0]
	}

	c, ok := g.bc[id]
	if !ok {
		return nil, ErrNoChain
	}

	return c, nil
}

// addrFromForm decodes the "?address=" query into its puzzle hash using the
// chain's bech32m prefix.
func addrFromForm(r *http.Request, c chain.Chain) (string, types.Bytes32, error) {
	tmp, ok := r.Form["address"]
	if !ok || len(tmp) != 1 {
		return "", types.Bytes32{}, ErrNoAddr
	}

	addr := strings.ToLower(tmp[0])

	ph, err := address.Decode(addr, c.NetworkPrefix())

	return addr, ph, err
}

// utxo is the client view of one unspent coin. Amount is a decimal string:
// mojo amounts exceed 2^53 and a bare JSON number loses precision in
// javascript clients.
type utxo struct {
	CoinID              types.Bytes32 `json:"coin_id"`
	ParentCoinInfo      types.Bytes32 `json:"parent_coin_info"`
	PuzzleHash          types.Bytes32 `json:"puzzle_hash"`
	Amount              string        `json:"amount"`
	ConfirmedBlockIndex uint32        `json:"confirmed_block_index"`
}

// utxosHandler replies the unspent coins locked under the queried address.
func (g *Gateway) utxosHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
		}
		// log request
		log.Printf("httpreq from %v %s err:%e\n", r.RemoteAddr, r.RequestURI, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	apiRequests.WithLabelValues("utxos").Inc()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	c, err := g.chainFromForm(r)
	if err != nil {
		return
	}

	addr, ph, err := addrFromForm(r, c)
	if err != nil {
		return
	}

	// serve from cache when fresh
	key := "utxos:" + c.ID() + ":" + addr
	if body, ok := g.ca.Get(key); ok {
		res.Body = string(body)

		return
	}

	recs, err := c.GetCoinRecordsByPuzzleHash(r.Context(), ph, false)
	if err != nil {
		return
	}

	utxos := make([]utxo, 0, len(recs))

	for _, rec := range recs {
		if rec.Spent {
			continue
		}

		utxos = append(utxos, utxo{
			CoinID:              rec.Coin.ID(),
			ParentCoinInfo:      rec.Coin.ParentCoinInfo,
			PuzzleHash:          rec.Coin.PuzzleHash,
			Amount:              strconv.FormatUint(rec.Coin.Amount, 10),
			ConfirmedBlockIndex: rec.ConfirmedBlockIndex,
		})
	}

	tmp, _ := json.Marshal(utxos)
	res.Body = string(tmp)
	g.ca.Set(key, tmp, g.utxoTTL)
}

// addrBalance is the client view of an address balance.
type addrBalance struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Balance uint64 `json:"balance"` // in mojos
	Coins   int    `json:"coins"`
}

// balanceHandler replies the spendable balance of the queried address, the sum
// of its unspent coin amounts.
func (g *Gateway) balanceHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
		}
		// log request
		log.Printf("httpreq from %v %s err:%e\n", r.RemoteAddr, r.RequestURI, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	apiRequests.WithLabelValues("balance").Inc()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	c, err := g.chainFromForm(r)
	if err != nil {
		return
	}

	addr, ph, err := addrFromForm(r, c)
	if err != nil {
		return
	}

	key := "balance:" + c.ID() + ":" + addr
	if body, ok := g.ca.Get(key); ok {
		res.Body = string(body)

		return
	}

	recs, err := c.GetCoinRecordsByPuzzleHash(r.Context(), ph, false)
	if err != nil {
		return
	}

	bal := addrBalance{Chain: c.ID(), Address: addr}

	for _, rec := range recs {
		if rec.Spent {
			continue
		}

		bal.Balance += rec.Coin.Amount
		bal.Coins++
	}

	tmp, _ := json.Marshal(bal)
	res.Body = string(tmp)
	g.ca.Set(key, tmp, g.utxoTTL)
}

// nftsHandler replies the NFTs currently owned by the queried address. Coins
// are discovered through hints from the chain's NFT start height, then each
// parent spend is fetched and its puzzle peeled. Coins that are not NFTs, or
// whose reveal cannot be decoded, or whose individual RPC fails, are skipped
// so one bad coin never takes down the listing.
func (g *Gateway) nftsHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
		}
		// log request
		log.Printf("httpreq from %v %s err:%e\n", r.RemoteAddr, r.RequestURI, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	apiRequests.WithLabelValues("nfts").Inc()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	c, err := g.chainFromForm(r)
	if err != nil {
		return
	}

	addr, ph, err := addrFromForm(r, c)
	if err != nil {
		return
	}

	key := "nfts:" + c.ID() + ":" + addr
	if body, ok := g.ca.Get(key); ok {
		res.Body = string(body)

		return
	}

	recs, err := c.GetCoinRecordsByHint(r.Context(), ph, false, c.NFTStartHeight())
	if err != nil {
		return
	}

	infos := g.gatherNFTs(r, c, recs, ph)

	tmp, _ := json.Marshal(infos)
	res.Body = string(tmp)
	g.ca.Set(key, tmp, g.nftTTL)
}

// gatherNFTs fetches the parent spend of each hinted coin with a bounded
// fan-out and extracts its NFT state. Only NFTs whose owner puzzle hash
// matches the queried one are returned.
func (g *Gateway) gatherNFTs(r *http.Request, c chain.Chain, recs []types.CoinRecord,
	ph types.Bytes32) []*nft.Info {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		infos = make([]*nft.Info, 0, len(recs))
	)

	sem := make(chan struct{}, g.fanout)

	for _, rec := range recs {
		if rec.Spent {
			continue
		}

		wg.Add(1)

		go func(rec types.CoinRecord) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			// the parent spend created this coin and carries its puzzle reveal
			ps, err := c.GetPuzzleAndSolution(r.Context(), rec.Coin.ParentCoinInfo, rec.ConfirmedBlockIndex)
			if err != nil {
				nftRPCErrors.Inc()
				log.Printf("[%s] skipping coin %s: %v", c.ID(), rec.Coin.ID(), err)

				return
			}

			info, err := extractNFT(rec.Coin, ps)

			switch {
			case err == nil:
			case errors.Is(err, nft.ErrUnsupportedVersion):
				nftUnsupported.Inc()

				return
			default:
				// not a singleton, not an NFT or a malformed reveal
				return
			}

			if info.Owner != ph {
				return
			}

			mu.Lock()
			infos = append(infos, info)
			mu.Unlock()
		}(rec)
	}

	wg.Wait()

	return infos
}

// extractNFT decodes the hex puzzle reveal and solution of the parent spend
// and peels the NFT state out of them. The state belongs to coin, the child
// the spend created, not to the spent parent in ps. A variable so tests can
// stub the extraction.
var extractNFT = func(coin types.Coin, ps types.PuzzleSolution) (*nft.Info, error) {
	puzzle, err := clvm.FromHex(ps.PuzzleReveal)
	if err != nil {
		return nil, err
	}

	solution, err := clvm.FromHex(ps.Solution)
	if err != nil {
		return nil, err
	}

	return nft.Extract(coin, puzzle, solution)
}

// sendTxHandler submits the spend bundle in the request body to the chain's
// mempool. A response is given to the client with the node status or error.
func (g *Gateway) sendTxHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var status string

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errors.Is(err, ErrNoChain) {
				rw.WriteHeader(http.StatusNotFound)
			} else {
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			rw.WriteHeader(http.StatusAccepted)
			tmp, _ := json.Marshal(map[string]string{"status": status})
			res.Body = string(tmp)
		}
		// log request and status
		log.Printf("httpreq from %v %s status:%s err:%e\n", r.RemoteAddr, r.RequestURI, status, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	apiRequests.WithLabelValues("sendtx").Inc()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	c, err := g.chainFromForm(r)
	if err != nil {
		return
	}

	var body struct {
		SpendBundle types.SpendBundle `json:"spend_bundle"`
	}

	if err = json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Printf("Error decoding spend bundle request: %v\n", err)

		err = ErrBadRequest

		return
	}

	if len(body.SpendBundle) == 0 {
		err = ErrBadRequest

		return
	}

	status, err = c.PushTX(r.Context(), body.SpendBundle)
	if err == nil && status != "SUCCESS" {
		err = fmt.Errorf("%w: %s", types.ErrRejected, status)
	}
}

// rpcHandler passes an arbitrary RPC through to the chain's full node,
// restricted to the configured method allow-list.
func (g *Gateway) rpcHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var raw json.RawMessage

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errors.Is(err, ErrRPCForbidden) {
				rw.WriteHeader(http.StatusForbidden)
			} else {
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			rw.WriteHeader(http.StatusOK)
			res.Body = string(raw)
		}
		// log request
		log.Printf("httpreq from %v %s err:%e\n", r.RemoteAddr, r.RequestURI, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	apiRequests.WithLabelValues("rpc").Inc()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	c, err := g.chainFromForm(r)
	if err != nil {
		return
	}

	var body struct {
		Method string                 `json:"method"`
		Params map[string]interface{} `json:"params"`
	}

	if err = json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Printf("Error decoding rpc request: %v\n", err)

		err = ErrBadRequest

		return
	}

	if !g.allow[body.Method] {
		err = fmt.Errorf("%w: %s", ErrRPCForbidden, body.Method)

		return
	}

	raw, err = c.RawFetch(r.Context(), body.Method, body.Params)
}

// listenHandler sends a watch request message to the broker to start or stop
// monitoring an address. A request accepted status will be replied or an
// error otherwise.
func (g *Gateway) listenHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusAccepted)
		}
		// log request
		log.Printf("httpreq from %v %s err:%e\n", r.RemoteAddr, r.RequestURI, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	apiRequests.WithLabelValues("listen").Inc()

	v := mux.Vars(r)

	addr, ok := v["address"]
	if !ok {
		err = ErrNoAddr

		return
	}

	addr = strings.ToLower(addr) // keep everything in lowercase to avoid issues

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	c, err := g.chainFromForm(r)
	if err != nil {
		return
	}

	// reject addresses that do not decode for this chain before queueing
	if _, err = address.Decode(addr, c.NetworkPrefix()); err != nil {
		return
	}

	wr := msg.WatchReq{Chain: c.ID(), Type: msg.ADDRESS, Obj: addr}

	switch r.Method {
	case "POST":
		wr.Act = msg.LISTEN
	case "DELETE":
		wr.Act = msg.UNLISTEN
	default:
		err = ErrBadMethod
	}
	// send message to broker
	if err == nil {
		err = g.mb.SendRequest(c.ID(), wr)
	}
}

// getAddrHandler replies the client with the addresses being monitored for the
// specified chain. If no chain is queried, addresses from all the chains are
// returned.
func (g *Gateway) getAddrHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var addrs []store.ListenedAddresses

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			tmp, _ := json.Marshal(addrs)
			res.Body = string(tmp)

			rw.WriteHeader(http.StatusAccepted)
		}
		// log request
		log.Printf("httpreq from %v %s addrs:%v err:%e\n", r.RemoteAddr, r.RequestURI, addrs, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	apiRequests.WithLabelValues("listen").Inc()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	chains, ok := r.Form["chain"]
	if ok && len(chains) != 1 { // we only allow 1 chain per request
		err = ErrNoChain

		return
	}
	// get addresses from DB
	addrs, err = g.db.GetAddresses(chains)
}
