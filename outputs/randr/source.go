package randr

import (
	"context"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/flokli/display-profiled/outputs"
)

const DefaultInterval = 2 * time.Second

// Source polls the output list and synthesizes the notifications a
// Wayland compositor would send for the differences.
type Source struct {
	interval time.Duration
	query    QueryFunc
	refresh  chan struct{}

	// keyed by connector name
	known  map[string]knownOutput
	nextID uint32
}

type knownOutput struct {
	id       uint32
	identity string
}

func New(interval time.Duration) *Source {
	return NewWithQuery(interval, Query)
}

// NewWithQuery uses query instead of invoking wlr-randr.
func NewWithQuery(interval time.Duration, query QueryFunc) *Source {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Source{
		interval: interval,
		query:    query,
		refresh:  make(chan struct{}, 1),
		known:    make(map[string]knownOutput),
		nextID:   1,
	}
}

// Run polls until ctx is cancelled. Failing polls are logged and retried on
// the next tick. ready is called after the first successful poll.
func (s *Source) Run(ctx context.Context, deliver func(outputs.Notification), ready func()) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	polled := false
	for {
		err := s.poll(ctx, deliver)
		switch {
		case err != nil && ctx.Err() == nil:
			log.WithError(err).Error("failed to refresh outputs")
		case err == nil && !polled:
			polled = true
			ready()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.refresh:
			log.Debug("refreshing outputs on request")
		}
	}
}

// Refresh triggers an immediate poll.
func (s *Source) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

func (s *Source) poll(ctx context.Context, deliver func(outputs.Notification)) error {
	current, err := s.query(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(current))
	for _, o := range current {
		if o.Name == "" {
			continue
		}
		seen[o.Name] = struct{}{}
		identity := o.Identity()

		if prev, ok := s.known[o.Name]; ok {
			if prev.identity == identity {
				continue
			}
			// another monitor on the same connector
			log.WithField("outputName", o.Name).Debug("output identity changed")
			delete(s.known, o.Name)
			deliver(outputs.Notification{Kind: outputs.Removed, ID: prev.id})
		}

		id := s.nextID
		s.nextID++
		s.known[o.Name] = knownOutput{id: id, identity: identity}

		deliver(outputs.Notification{Kind: outputs.Announced, ID: id})
		deliver(outputs.Notification{Kind: outputs.NameReceived, ID: id, Value: o.Name})
		deliver(outputs.Notification{Kind: outputs.DescriptionReceived, ID: id, Value: identity})
		if o.Serial != "" {
			deliver(outputs.Notification{Kind: outputs.SerialReceived, ID: id, Value: o.Serial})
		}
		deliver(outputs.Notification{Kind: outputs.Done, ID: id})
	}

	var gone []knownOutput
	for name, prev := range s.known {
		if _, ok := seen[name]; !ok {
			gone = append(gone, prev)
			delete(s.known, name)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i].id < gone[j].id })
	for _, prev := range gone {
		deliver(outputs.Notification{Kind: outputs.Removed, ID: prev.id})
	}
	return nil
}
