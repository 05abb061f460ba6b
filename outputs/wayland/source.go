// Package wayland watches wl_output globals on the compositor's Wayland
// socket and turns their events into output notifications.
package wayland

import (
	"context"
	"fmt"
	"sync"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/display-profiled/outputs"
)

// name and description events were added in version 4
const maxOutputVersion = 4

// Source is a Wayland connection announcing outputs.
type Source struct {
	// Display is the socket name, or empty for $WAYLAND_DISPLAY.
	Display string

	closeOnce sync.Once
}

func New(display string) *Source {
	return &Source{Display: display}
}

// output wraps a bound wl_output so the assembler can release it.
type output struct {
	*client.Output
}

// Release implements outputs.Handle.
func (o output) Release() error {
	return o.Output.Release()
}

// Run connects to the compositor and dispatches events until ctx is
// cancelled or the connection breaks. deliver is called from within the
// dispatch loop, ready after the initial roundtrip.
func (s *Source) Run(ctx context.Context, deliver func(outputs.Notification), ready func()) error {
	display, err := client.Connect(s.Display)
	if err != nil {
		return fmt.Errorf("unable to connect to wayland compositor: %w", err)
	}
	wctx := display.Context()
	closeConn := func() {
		s.closeOnce.Do(func() {
			if err := wctx.Close(); err != nil {
				log.WithError(err).Debug("closing wayland connection")
			}
		})
	}
	defer closeConn()

	registry, err := display.GetRegistry()
	if err != nil {
		return fmt.Errorf("failed to get registry: %w", err)
	}

	// registry name -> bound object
	bound := make(map[uint32]*client.Output)

	registry.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
		if e.Interface != "wl_output" {
			return
		}
		version := e.Version
		if version > maxOutputVersion {
			version = maxOutputVersion
		}
		l := log.WithFields(log.Fields{
			"outputID": e.Name,
			"version":  version,
		})
		if version < maxOutputVersion {
			l.Warn("compositor does not send output names, outputs will never finalize")
		}

		wo := client.NewOutput(wctx)
		if err := registry.Bind(e.Name, e.Interface, version, wo); err != nil {
			l.WithError(err).Error("failed to bind wl_output")
			return
		}
		bound[e.Name] = wo

		id := e.Name
		wo.SetNameHandler(func(ev client.OutputNameEvent) {
			deliver(outputs.Notification{Kind: outputs.NameReceived, ID: id, Value: ev.Name})
		})
		wo.SetDescriptionHandler(func(ev client.OutputDescriptionEvent) {
			deliver(outputs.Notification{Kind: outputs.DescriptionReceived, ID: id, Value: ev.Description})
		})
		wo.SetDoneHandler(func(client.OutputDoneEvent) {
			deliver(outputs.Notification{Kind: outputs.Done, ID: id})
		})

		l.Debug("bound wl_output")
		deliver(outputs.Notification{Kind: outputs.Announced, ID: id, Handle: output{wo}})
	})

	registry.SetGlobalRemoveHandler(func(e client.RegistryGlobalRemoveEvent) {
		if _, ok := bound[e.Name]; !ok {
			return
		}
		delete(bound, e.Name)
		// the assembler releases the object
		deliver(outputs.Notification{Kind: outputs.Removed, ID: e.Name})
	})

	if err := roundtrip(display); err != nil {
		return fmt.Errorf("initial roundtrip failed: %w", err)
	}
	log.WithField("outputs", len(bound)).Info("connected to wayland compositor")
	ready()

	go func() {
		<-ctx.Done()
		closeConn()
	}()

	for {
		if err := wctx.Dispatch(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wayland connection error: %w", err)
		}
	}
}

// Refresh is a no-op, the compositor pushes every change.
func (s *Source) Refresh() {
	log.Debug("wayland outputs are pushed by the compositor, nothing to refresh")
}

// roundtrip blocks until the compositor has processed all requests sent so
// far, dispatching the events they caused.
func roundtrip(display *client.Display) error {
	callback, err := display.Sync()
	if err != nil {
		return err
	}
	defer callback.Destroy()

	done := false
	callback.SetDoneHandler(func(client.CallbackDoneEvent) {
		done = true
	})
	for !done {
		if err := display.Context().Dispatch(); err != nil {
			return err
		}
	}
	return nil
}
