package db

import (
	"errors"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a record that must be unique already exists.
	ErrConflict = errors.New("record already exists")

	// ErrRemote wraps network failures talking to the remote backend.
	ErrRemote = errors.New("remote storage unavailable")

	// ErrStorageClosed is returned after Close.
	ErrStorageClosed = errors.New("storage is closed")
)
