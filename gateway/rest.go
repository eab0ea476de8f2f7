package gateway

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const timeout = 15

// Init sets up and starts the http/https server to service the RESTful API for
// the gateway service. If sslPort, sslCert and sslKey are informed, it will
// start an https (TLS) server on the specified endpoint.
func (g *Gateway) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	// API definition
	r := mux.NewRouter()
	r.HandleFunc("/", g.homeHandler)
	r.HandleFunc("/v1/networks", g.networksHandler).Methods("GET") // get all available chains
	r.HandleFunc("/v1/utxos", g.utxosHandler).Methods("GET")       // get unspent coins of an address
	r.HandleFunc("/v1/balance", g.balanceHandler).Methods("GET")   // get address balance
	r.HandleFunc("/v1/nfts", g.nftsHandler).Methods("GET")         // get NFTs owned by an address
	r.HandleFunc("/v1/sendtx", g.sendTxHandler).Methods("POST")    // submit a spend bundle
	r.HandleFunc("/v1/rpc", g.rpcHandler).Methods("POST")          // raw full-node RPC passthrough
	r.HandleFunc("/v1/listen/{address}", g.listenHandler)          // listen events related to the address
	r.HandleFunc("/v1/listen", g.getAddrHandler).Methods("GET")    // get listened addresses

	// setup shutdown channel
	g.sc = make(chan struct{})

	// start http server
	if port != "" {
		g.s = &http.Server{
			Handler: r,
			Addr:    endpoint + ":" + port,
			// Good practice: enforce timeouts for servers you create!
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			err = g.s.ListenAndServe()
		}()

		log.Printf("Listening to API http requests on %s:%s", endpoint, port)
	}
	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		g.ss = &http.Server{
			Handler: r,
			Addr:    endpoint + ":" + sslPort,
			// Good practice: enforce timeouts for servers you create!
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			errTLS = g.ss.ListenAndServeTLS(sslCert, sslKey)
		}()

		log.Printf("Listening to API https requests on %s:%s", endpoint, sslPort)
	}
	// wait for servers to be shutdown
	<-g.sc

	return fmt.Sprintf("shutdown http server:%e, https server:%e", err, errTLS)
}
