package realtime

import (
	"sync"
	"time"

	"github.com/mediflow/clinic/pkg/types"
)

// Entry is what the directory knows about one online user
type Entry struct {
	UserID       string
	Role         types.UserRole
	DisplayName  string
	Conn         Conn
	RegisteredAt time.Time
}

// Directory maps a logical user id to the connection currently representing
// that user. At most one connection is held per user; the latest registration wins.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	// byConn remembers which user each connection registered as
	byConn map[string]string
	now    func() time.Time
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{
		entries: make(map[string]*Entry),
		byConn:  make(map[string]string),
		now:     time.Now,
	}
}

// Register inserts or overwrites the entry for userID. A previous connection for
// the same user is dropped from the map but left open.
func (d *Directory) Register(userID string, role types.UserRole, displayName string, conn Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.byConn[conn.ID()]; ok && prev != userID {
		if e := d.entries[prev]; e != nil && e.Conn.ID() == conn.ID() {
			delete(d.entries, prev)
		}
	}

	d.entries[userID] = &Entry{
		UserID:       userID,
		Role:         role,
		DisplayName:  displayName,
		Conn:         conn,
		RegisteredAt: d.now(),
	}
	d.byConn[conn.ID()] = userID
}

// Lookup returns the entry for userID. A missing user is offline, not an error.
func (d *Directory) Lookup(userID string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[userID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Unregister removes the entry owned by conn. An entry that a newer connection
// has since taken over is left alone. Reports whether an entry was removed.
func (d *Directory) Unregister(conn Conn) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	userID, ok := d.byConn[conn.ID()]
	if !ok {
		return false
	}
	delete(d.byConn, conn.ID())

	e := d.entries[userID]
	if e == nil || e.Conn.ID() != conn.ID() {
		return false
	}
	delete(d.entries, userID)
	return true
}

// EvictAll clears every entry and returns how many were removed
func (d *Directory) EvictAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.entries)
	d.entries = make(map[string]*Entry)
	d.byConn = make(map[string]string)
	return n
}

// Len returns the number of online users
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
