package outputs

import (
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

var (
	ErrUnknownOutput    = errors.New("unknown output")
	ErrAlreadyFinalized = errors.New("output already finalized")
	ErrMissingField     = errors.New("output is missing name or description")
)

// Assembler turns protocol notifications into ConnectedOutputs.
// It is not safe for concurrent use; the event loop owns it.
type Assembler struct {
	pending map[uint32]*PendingOutput
	outputs map[uint32]ConnectedOutput
}

func NewAssembler() *Assembler {
	return &Assembler{
		pending: make(map[uint32]*PendingOutput),
		outputs: make(map[uint32]ConnectedOutput),
	}
}

// Apply feeds a single notification into the assembler. It returns true if
// the set of finalized outputs changed and profiles need re-evaluation.
func (a *Assembler) Apply(n Notification) bool {
	l := log.WithFields(log.Fields{
		"outputID":     n.ID,
		"notification": n.Kind,
	})

	switch n.Kind {
	case Announced:
		return a.AddPending(n.ID, n.Handle)
	case NameReceived, DescriptionReceived, SerialReceived:
		a.RecordField(n.ID, n.Kind, n.Value)
		return false
	case Done:
		output, err := a.Finalize(n.ID)
		switch {
		case errors.Is(err, ErrAlreadyFinalized):
			l.Debug("ignoring repeated done event")
			return false
		case err != nil:
			l.WithError(err).Warn("unable to finalize output")
			return false
		}
		l.WithField("output", output.String()).Info("output connected")
		return true
	case Removed:
		return a.Remove(n.ID)
	default:
		l.Warn("ignoring unknown notification")
		return false
	}
}

// AddPending registers a newly announced output. It returns true if the id
// belonged to a finalized output, which is dropped until it completes again.
func (a *Assembler) AddPending(id uint32, handle Handle) bool {
	changed := false
	if _, ok := a.outputs[id]; ok {
		log.WithField("outputID", id).Warn("output announced twice, replacing it")
		delete(a.outputs, id)
		changed = true
	}
	if old, ok := a.pending[id]; ok {
		release(old)
	}
	a.pending[id] = &PendingOutput{ID: id, handle: handle}
	log.WithField("outputID", id).Debug("detected new output, waiting for details")
	return changed
}

// RecordField stores one field of a pending output. kind must be one of
// NameReceived, DescriptionReceived or SerialReceived.
func (a *Assembler) RecordField(id uint32, kind Kind, value string) {
	p, ok := a.pending[id]
	if !ok {
		log.WithFields(log.Fields{
			"outputID": id,
			"field":    kind,
		}).Warn("field received for unknown output")
		return
	}

	switch kind {
	case NameReceived:
		p.Name = &value
	case DescriptionReceived:
		p.Description = &value
	case SerialReceived:
		p.Serial = &value
	default:
		log.WithField("field", kind).Warn("not an output field")
		return
	}
	log.WithField("output", p.String()).Debugf("%s received", kind)
}

// Finalize promotes a pending output to a ConnectedOutput.
// A pending output without name or description is discarded.
func (a *Assembler) Finalize(id uint32) (ConnectedOutput, error) {
	if _, ok := a.outputs[id]; ok {
		return ConnectedOutput{}, ErrAlreadyFinalized
	}
	p, ok := a.pending[id]
	if !ok {
		return ConnectedOutput{}, fmt.Errorf("%w: #%d", ErrUnknownOutput, id)
	}

	delete(a.pending, id)
	release(p)

	if p.Name == nil || p.Description == nil {
		return ConnectedOutput{}, fmt.Errorf("%w: %s", ErrMissingField, p)
	}

	output := ConnectedOutput{
		ID:       id,
		Name:     *p.Name,
		Identity: CleanDescription(*p.Description, *p.Name),
	}
	if p.Serial != nil {
		output.Serial = *p.Serial
	}
	a.outputs[id] = output
	return output, nil
}

// Remove drops a finalized output and reports whether anything changed.
// Pending outputs are dropped silently; they never were part of the set.
func (a *Assembler) Remove(id uint32) bool {
	if p, ok := a.pending[id]; ok {
		delete(a.pending, id)
		release(p)
		log.WithField("outputID", id).Debug("pending output vanished before completion")
		return false
	}

	output, ok := a.outputs[id]
	if !ok {
		return false
	}
	delete(a.outputs, id)
	log.WithField("output", output.String()).Info("output removed")
	return true
}

// Outputs returns the finalized outputs ordered by id, which is the order
// in which they were announced.
func (a *Assembler) Outputs() []ConnectedOutput {
	res := make([]ConnectedOutput, 0, len(a.outputs))
	for _, o := range a.outputs {
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Pending returns the number of outputs still waiting for their done event.
func (a *Assembler) Pending() int {
	return len(a.pending)
}

func release(p *PendingOutput) {
	if p.handle == nil {
		return
	}
	if err := p.handle.Release(); err != nil {
		log.WithError(err).WithField("outputID", p.ID).Warn("unable to release output handle")
	}
	p.handle = nil
}
