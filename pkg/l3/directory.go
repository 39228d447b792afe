package l3

import (
	"errors"

	"github.com/gopri/pri/pkg/ie"
	"github.com/gopri/pri/pkg/l3msg"
)

// ErrDirectoryFull is returned by AllocateNew when all 32767 call
// references are in use (§4.E, §8 invariant).
var ErrDirectoryFull = errors.New("l3: call reference directory is full")

// Call is one call record: the wire-relevant fields from §3 plus the
// directory bookkeeping §4.E requires. It embeds ie.CallFields so the
// IE codec table can decode/encode directly into it.
type Call struct {
	ie.CallFields

	CallRef uint16
	Origin  l3msg.Origin

	Alive          bool
	ProceedingSent bool

	next *Call
}

// Directory is the singly-linked list of live calls, ordered by
// insertion with the newest record at the head (§4.E).
type Directory struct {
	head    *Call
	counter uint16
}

// NewDirectory returns an empty directory. Outgoing call references
// start at 1 (§6).
func NewDirectory() *Directory {
	return &Directory{}
}

// Find does a linear scan by call-reference value.
func (d *Directory) Find(cr uint16) (*Call, bool) {
	for c := d.head; c != nil; c = c.next {
		if c.CallRef == cr {
			return c, true
		}
	}
	return nil, false
}

// FindOrCreate returns the existing call for cr, or inserts a fresh
// record on miss — the receive-path rule that an unknown incoming
// call-reference implies a new call (§4.E).
func (d *Directory) FindOrCreate(cr uint16, origin l3msg.Origin) *Call {
	if c, ok := d.Find(cr); ok {
		return c
	}
	c := &Call{CallFields: ie.NewCallFields(), CallRef: cr, Origin: origin, next: d.head}
	d.head = c
	return c
}

// AllocateNew assigns the next free reference in [1, 32767], wrapping,
// retrying on collision (§4.E).
func (d *Directory) AllocateNew() (*Call, error) {
	for i := 0; i < 32767; i++ {
		d.counter++
		if d.counter > 32767 {
			d.counter = 1
		}
		if _, exists := d.Find(d.counter); exists {
			continue
		}
		c := &Call{CallFields: ie.NewCallFields(), CallRef: d.counter, Origin: l3msg.OriginLocal, next: d.head}
		d.head = c
		return c, nil
	}
	return nil, ErrDirectoryFull
}

// Destroy unlinks the call record for cr, if present.
func (d *Directory) Destroy(cr uint16) {
	var prev *Call
	for c := d.head; c != nil; c = c.next {
		if c.CallRef == cr {
			if prev == nil {
				d.head = c.next
			} else {
				prev.next = c.next
			}
			return
		}
		prev = c
	}
}

// Walk visits every call, most recently inserted first. fn returning
// false stops the walk early. Walk is read-only with respect to
// traversal order: it captures each node's successor before calling
// fn, so fn may safely Destroy the call it was just given.
func (d *Directory) Walk(fn func(*Call) bool) {
	for c := d.head; c != nil; {
		next := c.next
		if !fn(c) {
			return
		}
		c = next
	}
}
