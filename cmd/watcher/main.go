// Package main: watcher service.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hashvale/chiagate/lib/chain"
	"github.com/hashvale/chiagate/lib/config"
	"github.com/hashvale/chiagate/lib/msg"
	"github.com/hashvale/chiagate/lib/msg/amqp"
	"github.com/hashvale/chiagate/lib/store"
	"github.com/hashvale/chiagate/lib/store/db"
	"github.com/hashvale/chiagate/watcher"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100")
	flag.Parse()

	// extract configuration
	var err error

	var conf config.ServiceConfig
	if conf, err = config.ExtractConfiguration(*confPath); err != nil {
		panic(err)
	}

	log.Printf("Configuration:%+v", conf)

	// connect to database
	var dbConn store.DB
	if conf.DBConn != "" {
		log.Printf("Connecting to database:%+v\n", conf.DBConn)

		if dbConn, err = db.New(conf.DBType, conf.DBConn); err != nil {
			panic(err)
		}
	}

	// load all chains
	var chains map[string]chain.Chain
	if chains, err = chain.Init(context.Background(), conf.Chains); err != nil {
		panic(err)
	}

	log.Print("Full-node clients loaded")

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()
			h.Handle("/metrics", promhttp.Handler())
			http.ListenAndServe(":9100", h)
		}()
	}

	// load message broker
	var mb msg.MsgBroker

	switch conf.MbType {
	case "amqp":
		if mb, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				panic(err)
			}
		}

		if err = mb.Setup(nil); err != nil {
			panic(err)
		}

		defer func() {
			err := mb.Close()
			log.Printf("Closing messageBroker: %e", err)
		}()
	default:
		log.Printf("Unknown message broker type: %s\n", conf.MbType)
	}

	// create watcher service
	w := watcher.New(conf.DBType, dbConn, mb, chains)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		w.StopWatcher()
		chain.End(chains)
	}()

	// launch watcher (for each chain) creating a waiting channel for each
	log.Printf("Watch: %s\n", <-w.Watch())
}
