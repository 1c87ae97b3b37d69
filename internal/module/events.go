package module

import (
	"fmt"
	"strings"
	"sync"
)

// EventHandler receives a fired event's arguments and returns its result.
type EventHandler func(args []any) any

// ParseEventRef splits "vendor/module:event" into source module and event name.
func ParseEventRef(ref string) (source, event string, err error) {
	source, event, ok := strings.Cut(ref, ":")
	if !ok || event == "" {
		return "", "", fmt.Errorf("event ref %q: want vendor/module:event", ref)
	}
	if _, _, err := ParseCode(source); err != nil {
		return "", "", fmt.Errorf("event ref %q: %w", ref, err)
	}
	return source, event, nil
}

type listenerKey struct {
	listener string
	source   string
	event    string
}

// EventDispatcher routes fire-and-return event notifications between the
// modules of one distributor. Listeners are invoked synchronously in
// registration order; their results are collected and handed back to the
// firing module.
type EventDispatcher struct {
	mu        sync.RWMutex
	listeners map[listenerKey]EventHandler
	order     []listenerKey
}

// NewEventDispatcher creates an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{listeners: make(map[listenerKey]EventHandler)}
}

// Listen subscribes listeningModule to an event ref of the form
// "vendor/module:event". A module may hold at most one listener per
// (source, event) pair.
func (d *EventDispatcher) Listen(listeningModule, ref string, handler EventHandler) error {
	source, event, err := ParseEventRef(ref)
	if err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("event ref %q: nil handler", ref)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := listenerKey{listener: listeningModule, source: source, event: event}
	if _, exists := d.listeners[key]; exists {
		return fmt.Errorf("event ref %q: %s already listening", ref, listeningModule)
	}
	d.listeners[key] = handler
	d.order = append(d.order, key)
	return nil
}

// Remove drops listeningModule's subscription for ref, if any.
func (d *EventDispatcher) Remove(listeningModule, ref string) {
	source, event, err := ParseEventRef(ref)
	if err != nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := listenerKey{listener: listeningModule, source: source, event: event}
	if _, exists := d.listeners[key]; !exists {
		return
	}
	delete(d.listeners, key)
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Fire notifies every listener of (sourceModule, event) and returns their
// results in registration order. No listeners yields an empty slice.
func (d *EventDispatcher) Fire(sourceModule, event string, args []any) []any {
	d.mu.RLock()
	var handlers []EventHandler
	for _, key := range d.order {
		if key.source == sourceModule && key.event == event {
			handlers = append(handlers, d.listeners[key])
		}
	}
	d.mu.RUnlock()

	results := make([]any, 0, len(handlers))
	for _, h := range handlers {
		results = append(results, h(args))
	}
	return results
}
