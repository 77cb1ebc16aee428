package actuator

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

// CoverValue is the state of a cover (blind, shutter, garage door).
type CoverValue string

// Cover values. Opening and closing are reported by the hub but cannot be
// requested.
const (
	CoverOpen        CoverValue = "open"
	CoverClosed      CoverValue = "closed"
	CoverOpening     CoverValue = "opening"
	CoverClosing     CoverValue = "closing"
	CoverUnavailable CoverValue = "unavailable"
)

const (
	coverDomain             = "cover"
	serviceOpenCover        = "open_cover"
	serviceCloseCover       = "close_cover"
	serviceSetCoverPosition = "set_cover_position"
	attrPosition            = "position"
	attrCurrentPosition     = "current_position"
)

// CoverDelta holds the optional position (0 closed .. 100 open).
type CoverDelta struct {
	Position *int
}

// ParseCover maps a raw state value. Unrecognised values are unavailable.
func ParseCover(s entity.State) CoverValue {
	switch v := CoverValue(s.Value); v {
	case CoverOpen, CoverClosed, CoverOpening, CoverClosing:
		return v
	default:
		return CoverUnavailable
	}
}

// CoverResolver returns the cover rule table.
func CoverResolver() *service.Resolver[CoverValue, CoverDelta] {
	positionRule := service.When(serviceSetCoverPosition, func(d CoverDelta) (map[string]any, bool) {
		if d.Position == nil {
			return nil, false
		}
		return map[string]any{attrPosition: *d.Position}, true
	})
	return service.NewResolver[CoverValue, CoverDelta](coverDomain).
		Terminal(CoverUnavailable).
		Case(CoverOpen, serviceOpenCover, positionRule).
		Case(CoverClosed, serviceCloseCover)
}

// Cover is a cover entity.
type Cover struct {
	*Actuator[CoverValue, CoverDelta]
}

// NewCover creates a cover facade for cover.objectID.
func NewCover(objectID string, deps Deps) *Cover {
	return &Cover{New(entity.NewID(coverDomain, objectID), ParseCover, CoverResolver(), deps)}
}

// Open requests the fully open state.
func (c *Cover) Open(ctx context.Context) (int64, error) {
	return c.SetDesiredState(ctx, service.Desired[CoverValue, CoverDelta]{Value: CoverOpen})
}

// Close requests the closed state.
func (c *Cover) Close(ctx context.Context) (int64, error) {
	return c.SetDesiredState(ctx, service.Desired[CoverValue, CoverDelta]{Value: CoverClosed})
}

// SetPosition moves the cover to position (0..100).
func (c *Cover) SetPosition(ctx context.Context, position int) (int64, error) {
	if position < 0 || position > 100 {
		return 0, fmt.Errorf("%w: cover position %d out of range", ErrNotAllowed, position)
	}
	return c.SetDesiredState(ctx, service.Desired[CoverValue, CoverDelta]{
		Value: CoverOpen,
		Delta: CoverDelta{Position: &position},
	})
}

// IsOpen reports whether the cover is open.
func (c *Cover) IsOpen() bool {
	snap, ok := c.ActualState()
	return ok && snap.Value == CoverOpen
}

// IsClosed reports whether the cover is closed.
func (c *Cover) IsClosed() bool {
	snap, ok := c.ActualState()
	return ok && snap.Value == CoverClosed
}

// Position returns the reported position.
func (c *Cover) Position() (int, bool) {
	snap, ok := c.ActualState()
	if !ok {
		return 0, false
	}
	f, ok := snap.State.Float(attrCurrentPosition)
	return int(f), ok
}

// OnOpened calls fn when the cover finishes opening.
func (c *Cover) OnOpened(fn func(Change[CoverValue]) error) Handle {
	return c.Observe(when(func(ch Change[CoverValue]) bool {
		return ch.Old.Value != CoverOpen && ch.New.Value == CoverOpen
	}, fn))
}

// OnClosed calls fn when the cover finishes closing.
func (c *Cover) OnClosed(fn func(Change[CoverValue]) error) Handle {
	return c.Observe(when(func(ch Change[CoverValue]) bool {
		return ch.Old.Value != CoverClosed && ch.New.Value == CoverClosed
	}, fn))
}
