package reporter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// errBackoff is returned by get while a failed dial is still fresh.
var errBackoff = errors.New("waiting before the next connection attempt")

// link is the reporter's shared connection to the manager. Only the sender
// dials it; the receiver waits until a connection exists, so the manager never
// holds an idle socket the sender is not writing to.
type link struct {
	mu   sync.Mutex
	conn net.Conn
	// dialed is closed and replaced after every successful dial.
	dialed chan struct{}
	// retryAt blocks redials until the reconnect delay has passed.
	retryAt time.Time
	delay   time.Duration

	dial func(ctx context.Context) (net.Conn, error)
	// onDial is called after every successful dial.
	onDial func()
}

func newLink(dial func(ctx context.Context) (net.Conn, error), delay time.Duration, onDial func()) *link {
	return &link{
		dialed: make(chan struct{}),
		delay:  delay,
		dial:   dial,
		onDial: onDial,
	}
}

// get returns the current connection, dialing when there is none.
func (l *link) get(ctx context.Context) (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return l.conn, nil
	}

	if now := time.Now(); now.Before(l.retryAt) {
		return nil, fmt.Errorf("%w: %w for %s", ErrConnect, errBackoff, l.retryAt.Sub(now))
	}

	conn, err := l.dial(ctx)
	if err != nil {
		l.retryAt = time.Now().Add(l.delay)

		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	l.conn = conn
	l.retryAt = time.Time{}

	close(l.dialed)
	l.dialed = make(chan struct{})

	if l.onDial != nil {
		l.onDial()
	}

	return conn, nil
}

// wait returns the current connection, blocking until the sender dials one
// or ctx ends.
func (l *link) wait(ctx context.Context) (net.Conn, error) {
	for {
		l.mu.Lock()
		conn, dialed := l.conn, l.dialed
		l.mu.Unlock()

		if conn != nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-dialed:
		}
	}
}

// drop closes conn if it is still the current connection.
func (l *link) drop(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil || l.conn != conn {
		return
	}

	//nolint:errcheck // The connection is already considered broken.
	l.conn.Close()
	l.conn = nil
}

// close releases the current connection.
func (l *link) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		//nolint:errcheck // Shutting down.
		l.conn.Close()
		l.conn = nil
	}
}
