package sink

import "errors"

// Sentinel kinds for sink errors. These allow errors.Is/As from callers.
var (
	ErrOpen    = errors.New("sink open failed")
	ErrMigrate = errors.New("sink migration failed")
	ErrSave    = errors.New("sink save failed")
	ErrQuery   = errors.New("sink query failed")
	ErrClosed  = errors.New("sink closed")
)
