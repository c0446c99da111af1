package store

import "errors"

// ErrNoSession is returned when nobody has logged in on this desk yet.
var ErrNoSession = errors.New("no saved session")

// ErrSubscriptionNotFound is returned when a push endpoint is unknown.
var ErrSubscriptionNotFound = errors.New("subscription not found")
