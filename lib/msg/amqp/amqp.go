// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"

	"github.com/streadway/amqp"

	"github.com/hashvale/chiagate/lib/chain/types"
	"github.com/hashvale/chiagate/lib/msg"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (*Amqp, error) {
	r := Amqp{}

	var err error

	if r.conn, err = amqp.Dial(uri); err != nil {
		return &r, err
	}

	r.ch = nil

	log.Printf("Connected to %s", uri)

	return &r, err
}

// Setup obtains an amqp channel and declares the message broker exchanges:
//
// - wr ("watch requests"): the gateway service publishes requests to this exchange
//
// - ce ("coin events"): the watcher service publishes events to this exchange
func (r *Amqp) Setup(x interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()
	// declare exchanges
	if err = channel.ExchangeDeclare("wr", "topic", true, false, false, false, nil); err != nil {
		return err
	}

	return channel.ExchangeDeclare("ce", "topic", true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker.
func (r *Amqp) Close() error {
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Printf("Error closing amqp.Channel:%e", err)
		}

		r.ch = nil

		log.Printf("amqp.Channel closed!")
	}

	return r.conn.Close()
}

// SendEvents publishes coin events to the "ce" exchange.
func (r *Amqp) SendEvents(chain string, evs []types.CoinEvent) (err error) {
	for _, e := range evs {
		// marshal to JSON
		var jsonDoc []byte
		if jsonDoc, err = json.Marshal(e); err != nil {
			return
		}
		// obtain channel if not present
		if r.ch == nil {
			if r.ch, err = r.conn.Channel(); err != nil {
				return
			}
		}
		// build body
		m := amqp.Publishing{
			Headers:     amqp.Table{"x-coin-name": chain + "." + e.CoinID},
			Body:        jsonDoc,
			ContentType: "application/json",
		}
		// publish
		if err = r.ch.Publish("ce", chain+".coin."+e.CoinID, false, false, m); err != nil {
			log.Printf("[%s] Error sending coin event to message broker %e", chain, err)
		}
	}

	return
}

// SendRequest publishes a new watch request to the "wr" exchange.
func (r *Amqp) SendRequest(chain string, wr msg.WatchReq) (err error) {
	// marshal to JSON
	var jsonDoc []byte
	if jsonDoc, err = json.Marshal(wr); err != nil {
		return
	}
	// obtain channel if not present
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return
		}
	}
	// build body
	m := amqp.Publishing{
		Headers:     amqp.Table{"x-wreq-name": chain + "." + wr.Obj},
		Body:        jsonDoc,
		ContentType: "application/json",
	}
	// publish
	if err = r.ch.Publish("wr", chain+"."+strconv.Itoa(wr.Type)+"."+wr.Obj, false, false, m); err != nil {
		log.Printf("[%s] Error sending request to message broker %e", chain, err)
	}

	return
}

// GetEvents consumes coin events from the "ce" exchange pushing them to the returned channel.
// The Mutex pointer is provided to ensure the consumed message has been fully dealt with by the
// management function, so the message consumed is only acknowledged when the mutex is unlocked.
func (r *Amqp) GetEvents(chain string, mut *sync.Mutex) (<-chan types.CoinEvent, <-chan error, error) {
	var err error
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return nil, nil, err
		}
	}
	// declare queue
	if _, err = r.ch.QueueDeclare("ce"+chain, true, false, false, false, nil); err != nil {
		return nil, nil, err
	}
	// bind queue to exchange
	if err = r.ch.QueueBind("ce"+chain, chain+".*.*", "ce", false, nil); err != nil {
		return nil, nil, err
	}
	// create channel for receiving events
	msgs, errCons := r.ch.Consume("ce"+chain, "gateway-"+chain, false, false, false, false, nil)
	if errCons != nil {
		return nil, nil, errCons
	}
	// define channels to return
	eves := make(chan types.CoinEvent)
	errors := make(chan error)
	// start routine to consume messages from broker
	go func() {
		for m := range msgs {
			ev := new(types.CoinEvent)

			err := json.Unmarshal(m.Body, ev)
			if err != nil {
				errors <- err

				continue
			}
			eves <- *ev
			mut.Lock() // wait for the gateway to finish processing the event
			m.Ack(false)
		}
	}()

	return eves, errors, nil
}

// GetReqs consumes requests from the "wr" exchange for the specified chain pushing them to the
// returned channel. The Mutex pointer is provided to ensure the consumed message has been fully
// dealt with by the management function, so the message consumed is only acknowledged when the
// mutex is unlocked.
func (r *Amqp) GetReqs(chain string, mut *sync.Mutex) (<-chan msg.WatchReq, <-chan error, error) {
	var err error
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return nil, nil, err
		}
	}
	// declare queue
	if _, err = r.ch.QueueDeclare("wr"+chain, true, false, false, false, nil); err != nil {
		return nil, nil, err
	}
	// bind queue to exchange
	if err = r.ch.QueueBind("wr"+chain, chain+".*.*", "wr", false, nil); err != nil {
		return nil, nil, err
	}
	// create channel for receiving requests
	msgs, errCons := r.ch.Consume("wr"+chain, "watcher-"+chain, false, false, false, false, nil)
	if errCons != nil {
		return nil, nil, errCons
	}
	// define channels to return
	reqs := make(chan msg.WatchReq)
	errors := make(chan error)
	// start routine to consume messages from broker
	go func() {
		for m := range msgs {
			req := new(msg.WatchReq)

			err := json.Unmarshal(m.Body, req)
			if err != nil {
				errors <- err

				continue
			}
			reqs <- *req
			mut.Lock() // wait for the watcher to finish processing the request
			m.Ack(false)
		}
	}()

	return reqs, errors, nil
}
