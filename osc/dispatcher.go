package osc

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Dispatcher is the interface for an OSC packet dispatcher. A dispatcher is
// responsible for dispatching received OSC packets.
type Dispatcher interface {
	Dispatch(packet Packet)
}

// Handler is the interface for OSC message handlers.
type Handler interface {
	HandleMessage(msg *Message)
}

// HandlerFunc is an adapter to allow the use of ordinary functions as OSC
// message handlers.
type HandlerFunc func(msg *Message)

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg *Message) {
	f(msg)
}

// CatchAll is the handler address that receives every message.
const CatchAll = "*"

// StandardDispatcher dispatches messages to the handlers whose address
// matches the message's address pattern.
type StandardDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	// Now returns the current time. Bundles are delayed until their time tag
	// is due relative to Now. Defaults to time.Now.
	Now func() time.Time
}

// Verify that StandardDispatcher implements the Dispatcher interface.
var _ Dispatcher = (*StandardDispatcher)(nil)

// NewStandardDispatcher returns a StandardDispatcher.
func NewStandardDispatcher() *StandardDispatcher {
	return &StandardDispatcher{handlers: make(map[string]Handler), Now: time.Now}
}

// AddMsgHandler adds a new message handler for the given OSC address.
func (d *StandardDispatcher) AddMsgHandler(address string, handler HandlerFunc) error {
	if address != CatchAll {
		if !strings.HasPrefix(address, "/") {
			return errors.Errorf("OSC address %q must start with '/'", address)
		}
		if strings.ContainsAny(address, "*?,[]{}# ") {
			return errors.Errorf("OSC address %q may not contain any characters in \"*?,[]{}# \"", address)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[address]; ok {
		return errors.Errorf("OSC address %q exists already", address)
	}
	d.handlers[address] = handler
	return nil
}

// Dispatch dispatches OSC packets. Messages are delivered synchronously.
// Bundles are delivered once their time tag is due, on a separate goroutine
// when that is in the future.
func (d *StandardDispatcher) Dispatch(packet Packet) {
	switch t := packet.(type) {
	case *Message:
		d.dispatchMessage(t)

	case *Bundle:
		wait := time.Duration(0)
		if t.Timetag > TimetagImmediate {
			wait = t.Timetag.Time().Sub(d.Now())
		}
		if wait <= 0 {
			d.dispatchBundle(t)
			return
		}
		time.AfterFunc(wait, func() { d.dispatchBundle(t) })
	}
}

func (d *StandardDispatcher) dispatchBundle(b *Bundle) {
	for _, e := range b.Elements {
		d.Dispatch(e)
	}
}

func (d *StandardDispatcher) dispatchMessage(msg *Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for address, handler := range d.handlers {
		if address == CatchAll || msg.Match(address) {
			handler.HandleMessage(msg)
		}
	}
}

var (
	regexMu    sync.Mutex
	regexCache = map[string]*regexp.Regexp{}
	noMatch    = regexp.MustCompile(`$.^`)
)

// getRegEx compiles and returns a regular expression object for the given
// address pattern. Patterns that do not compile match nothing.
func getRegEx(pattern string) *regexp.Regexp {
	regexMu.Lock()
	defer regexMu.Unlock()
	if exp, ok := regexCache[pattern]; ok {
		return exp
	}

	p := regexp.QuoteMeta(pattern)
	for _, trs := range []struct {
		old, new string
	}{
		{`\*`, `[^/]*`}, // '*' matches zero or more chars within one part
		{`\?`, `[^/]`},  // '?' matches a single char
		{`\{`, "("},     // '{foo,bar}' becomes an alternation
		{",", "|"},
		{`\}`, ")"},
	} {
		p = strings.ReplaceAll(p, trs.old, trs.new)
	}

	exp, err := regexp.Compile("^" + p + "$")
	if err != nil {
		exp = noMatch
	}
	if len(regexCache) < 1024 {
		regexCache[pattern] = exp
	}
	return exp
}
