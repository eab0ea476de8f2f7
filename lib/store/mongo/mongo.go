// Package mongo implements the interface for MongoDB.
package mongo

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hashvale/chiagate/lib/store"
	"github.com/hashvale/chiagate/lib/util"
)

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// MongoAddress implements a store address to MongoDB.
type MongoAddress struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id"`
	Name       string             `json:"name,omitempty" bson:"name,omitempty"`
	Addr       string             `json:"address" bson:"address"`
	PuzzleHash string             `json:"puzzle_hash" bson:"puzzle_hash"`
}

// Address converts a MongoAddress to store.Address type.
func (a MongoAddress) Address() store.Address {
	return store.Address{ID: a.ID[:], Addr: a.Addr, Name: a.Name, PuzzleHash: a.PuzzleHash}
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	err = c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

// AddAddress saves an address if the address does not already exist.
func (m *Mongo) AddAddress(a store.Address, chain string) ([]byte, error) {
	var ma MongoAddress
	ma.Addr = a.Addr

	col := m.c.Database("addr").Collection(chain)

	// try and find it
	filter := bson.M{"address": a.Addr}
	sr := col.FindOne(context.Background(), filter)

	err := sr.Decode(&ma)
	if errors.Is(err, mgo.ErrNoDocuments) { // if not found, do insert it!!
		res, errIns := col.InsertOne(context.Background(),
			bson.M{"name": a.Name, "address": a.Addr, "puzzle_hash": a.PuzzleHash})
		if errIns != nil {
			return nil, fmt.Errorf("could not insert address in db: %w", errIns)
		}

		return hex.DecodeString(res.InsertedID.(primitive.ObjectID).Hex())
	}

	if err != nil {
		return nil, fmt.Errorf("could not insert address in db: %w", err)
	}

	log.Printf("[%s] Address was already listened:%+v\n", chain, ma)

	return hex.DecodeString(ma.ID.Hex())
}

// RemoveAddress deletes an address from the database.
func (m *Mongo) RemoveAddress(a store.Address, chain string) error {
	col := m.c.Database("addr").Collection(chain)

	filter := bson.M{"address": a.Addr}

	res, err := col.DeleteOne(context.Background(), filter)
	if err == nil && res.DeletedCount != 1 {
		err = store.ErrAddrNotFound
	}

	return err
}

// GetAddresses returns the addresses monitored for the chains indicated in the chains slice.
func (m *Mongo) GetAddresses(chains []string) ([]store.ListenedAddresses, error) {
	cols, err := m.c.Database("addr").ListCollections(context.Background(), bson.D{})
	if err != nil {
		return nil, fmt.Errorf("error getting mongo DB object: %w", err)
	}

	addrs := []store.ListenedAddresses{}

	for cols.Next(context.Background()) {
		col := cols.Current.Lookup("name").String()
		col = col[1 : len(col)-1]

		if len(chains) == 0 || util.In(chains, col) {
			var addr store.ListenedAddresses
			// get the addresses
			docs, err := m.c.Database("addr").Collection(col).Find(context.TODO(), bson.M{})
			if err == nil {
				addr.Chain = col

				for docs.Next(context.Background()) {
					var a MongoAddress
					if err = bson.Unmarshal(docs.Current, &a); err == nil {
						addr.Addr = append(addr.Addr, a.Address())
					}
				}
			}

			addrs = append(addrs, addr)
		}
	}

	return addrs, nil
}

// LoadWatcher loads from db the WatchState for the indicated chain.
func (m *Mongo) LoadWatcher(chain string) (ws store.WatchState, err error) {
	mongoSingleResult := m.c.Database("watch").Collection(chain).FindOne(context.TODO(), bson.D{})
	if err = mongoSingleResult.Decode(&ws); errors.Is(err, mgo.ErrNoDocuments) {
		err = store.ErrDataNotFound
	}

	return
}

// SaveWatcher saves to db the WatchState for the indicated chain.
func (m *Mongo) SaveWatcher(chain string, ws store.WatchState) (err error) {
	_, err = m.c.Database("watch").Collection(chain).UpdateOne(context.Background(),
		bson.D{}, // filter
		bson.D{ // update
			{
				Key: "$set", Value: bson.D{
					{Key: "height", Value: ws.Height},
					{Key: "seen", Value: ws.Seen},
				},
			},
		},
		options.Update().SetUpsert(true))

	return
}

// DeleteWatcher deletes from db the WatchState for the indicated chain.
func (m *Mongo) DeleteWatcher(chain string) (err error) {
	_, err = m.c.Database("watch").Collection(chain).DeleteOne(context.Background(), bson.D{}, options.Delete())

	return
}
