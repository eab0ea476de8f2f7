// Package store defines the interface for database implementations to the
// gateway and watcher services.
package store

import (
	"errors"
)

// DB defines required methods for the gateway and the watcher.
type DB interface {
	// methods for the gateway service
	AddAddress(Address, string) ([]byte, error)
	RemoveAddress(Address, string) error
	GetAddresses([]string) ([]ListenedAddresses, error)
	// methods for the watcher service
	LoadWatcher(string) (WatchState, error)
	SaveWatcher(string, WatchState) error
	DeleteWatcher(string) error
}

// Errors returned
var (
	ErrAddrNotFound = errors.New("address was not found in store")
	ErrDataNotFound = errors.New("data was not found in store")
)
