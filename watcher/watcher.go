// Package watcher implements the coin watcher microservice. The watcher polls
// the coin set of the monitored addresses on each chain and sends events when
// a coin appears or is spent.
package watcher

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hashvale/chiagate/lib/address"
	"github.com/hashvale/chiagate/lib/chain"
	"github.com/hashvale/chiagate/lib/msg"
	"github.com/hashvale/chiagate/lib/store"
	cw "github.com/hashvale/chiagate/watcher/chainwatcher"
)

// Watcher implements a watcher service.
type Watcher struct {
	dbtype string
	db     store.DB
	bc     map[string]chain.Chain      // map of full-node clients
	cwm    map[string]*cw.ChainWatcher // map of chain watchers
	mb     msg.MsgBroker
}

// New instantiates a new watcher service.
func New(dbtype string, db store.DB, mb msg.MsgBroker, bc map[string]chain.Chain) *Watcher {
	return &Watcher{
		dbtype: dbtype,
		db:     db,
		bc:     bc,
		cwm:    make(map[string]*cw.ChainWatcher),
		mb:     mb,
	}
}

// Watch starts a go routine for each chain available. The watching of each
// chain is controlled by a ChainWatcher (see package watcher/chainwatcher for
// details) holding the addresses being monitored and the coins already seen.
// The watcher consumes gateway requests to monitor new addresses. In case of
// graceful termination, the watcher will wait for all the chain loops to
// finish and save their state.
func (w *Watcher) Watch() chan string {
	ret := make(chan string, 1)
	// channel to wait for chain watchers
	done := make(chan string, len(w.bc))

	for id := range w.bc {
		// get listened addresses from DB
		addrs, err := w.db.GetAddresses([]string{id})
		if err != nil {
			log.Printf("[%s] Cannot load listened addresses from DB, err:%e", id, err)

			continue
		}

		if len(addrs) == 0 || len(addrs[0].Addr) == 0 {
			log.Printf("[%s] No listened addresses to watch in DB.", id)
		}
		// set up the watching state
		if w.cwm[id], err = cw.New(id, addrs, w.db); err != nil {
			log.Printf("[%s] chainwatcher.New failed:%e", id, err)

			continue
		}
		// listen for gateway requests, if there are pending requests in the broker queues,
		// they will be processed to DB so the address map starts with all the data loaded
		if err = w.ManageWatchRequests(id); err != nil {
			log.Printf("[%s] Cannot consume watch requests from broker, err:%e", id, err)

			continue
		}
		// watch
		w.WatchChain(id, done)
	}
	// routine to wait for all chains to complete watching...
	go func() {
		for i := 1; i < len(w.bc)+1; i++ {
			log.Printf("Watch, channel %d/%d returned: %s", i, len(w.bc), <-done)
		}
		ret <- "Done!"
	}()

	return ret
}

// StopWatcher will send termination signals to all chain watcher go routines.
func (w *Watcher) StopWatcher() {
	for _, cwr := range w.cwm {
		cwr.Stop()
	}
}

// WatchChain starts a watching go routine for the chain named 'id'. When the
// routine ends, returns its error status via the 'ret' channel given so the
// calling routine can control graceful termination. When a chain does not
// have any monitored addresses, the watcher will keep waiting and will not
// poll the node.
func (w *Watcher) WatchChain(id string, ret chan string) {
	cwr := w.cwm[id]

	log.Printf("[%s] Watching at height %d... ", id, cwr.Height)

	go func() {
		var err error

		c := w.bc[id]

		defer func() {
			// save ChainWatcher to DB
			errSave := w.db.SaveWatcher(id, cwr.ToStore())
			// write into channel
			ret <- "[" + id + "] Done!" + fmt.Sprintf(" err:%e", err) + fmt.Sprintf(" err2:%e", errSave)
		}()

		for cwr.Status() == cw.WORK {
			addrs := cwr.Addresses()
			if len(addrs) == 0 {
				// wait until there is something to watch for
				log.Printf("[%s] Waiting for something to watch", id)
				time.Sleep(time.Duration(c.AvgBlock()) * time.Second)

				continue
			}
			// poll the coin set of every monitored address
			for addr, ph := range addrs {
				recs, errGet := c.GetCoinRecordsByPuzzleHash(context.Background(), ph, true)
				if errGet != nil {
					log.Printf("[%s] WatchChain coin records for %s err:%e", id, addr, errGet)

					continue
				}

				evs := cwr.Diff(id, addr, recs)
				// send events
				if len(evs) > 0 {
					err = w.mb.SendEvents(id, evs)
					log.Printf("[%s] Sending %d events:%+v err:%e\n", id, len(evs), evs, err)
				}
			}
			// save ChainWatcher status to DB
			if errSave := w.db.SaveWatcher(id, cwr.ToStore()); errSave != nil {
				log.Printf("[%s] Error saving ChainWatcher to DB, err:%e", id, errSave)

				break
			}
			// wait for the next block before polling again
			time.Sleep(time.Duration(c.AvgBlock()) * time.Second)
		}
	}()
}

// ManageWatchRequests starts a go routine to receive and manage gateway
// requests for addresses to be monitored for the chain named 'id'.
func (w *Watcher) ManageWatchRequests(id string) error {
	mut := new(sync.Mutex)

	mut.Lock()

	reqCh, errCh, err := w.mb.GetReqs(id, mut)
	if err != nil {
		return fmt.Errorf("watcher: cannot get requests: %w", err)
	}

	cwr := w.cwm[id]
	prefix := w.bc[id].NetworkPrefix()

	// launch request channel reader
	go func() {
		log.Printf("[%s] Start listening to watch request channel", id)

		for {
			select {
			case req, ok := (<-reqCh):
				if !ok {
					log.Printf("[%s] Stop listening to watch request channel", id)

					break
				}

				log.Printf("Received request %+v", req)
				// validate request
				if req.Chain != id || req.Type != msg.ADDRESS ||
					len(req.Obj) == 0 || (req.Act != msg.LISTEN && req.Act != msg.UNLISTEN) {
					log.Printf("[%s] Request has wrong chain %s, wrong type %d, missing object %s or wrong action %d",
						id, req.Chain, req.Type, req.Obj, req.Act)

					mut.Unlock()

					continue
				}
				// process object
				ph, errDec := address.Decode(req.Obj, prefix)
				if errDec != nil {
					log.Printf("[%s] Request address %s does not decode: %v", id, req.Obj, errDec)

					mut.Unlock()

					continue
				}

				a := store.Address{Addr: req.Obj, PuzzleHash: ph.String()}

				if req.Act == msg.LISTEN {
					// save it to DB
					if _, err := w.db.AddAddress(a, id); err != nil {
						log.Printf("[%s] Error adding watch address to DB %e", id, err)
					}
					// include it in ChainWatcher
					cwr.Add(req.Obj, ph)
					log.Printf("[%s] Added address %s to ChainWatcher", id, req.Obj)
				} else {
					// delete from ChainWatcher
					if _, ok := cwr.Del(req.Obj); !ok {
						log.Printf("[%s] Error deleting watch address %s from ChainWatcher. Not found. Ignoring...",
							id, req.Obj)
					}
					// delete from DB
					if err := w.db.RemoveAddress(a, id); err != nil {
						log.Printf("[%s] Error deleting watch address from DB %e", id, err)
					}
					log.Printf("[%s] Removed address %s from ChainWatcher", id, req.Obj)
				}

				mut.Unlock()
			case e, ok := (<-errCh):
				if !ok {
					log.Printf("[%s] Stop listening to watch request channel", id)

					break
				}

				log.Printf("[%s] Received error %+v", id, e)
			}
		}
	}()

	return nil
}
