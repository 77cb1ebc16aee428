package hub

import (
	"context"

	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

func callService(id int64, cmd service.Command) callServiceMessage {
	return callServiceMessage{
		request:     request{ID: id, Type: typeCallService},
		Domain:      cmd.Domain,
		Service:     cmd.Service,
		ServiceData: cmd.ServiceData(),
	}
}

// Submit sends cmd as call_service and returns its correlation id without
// waiting for the hub's answer. A failure result still reaches the error
// observers through the dispatcher.
func (c *Client) Submit(ctx context.Context, cmd service.Command) (int64, error) {
	id := c.nextID.Add(1)
	if err := c.write(ctx, callService(id, cmd)); err != nil {
		return 0, err
	}
	c.logger.Debug("command submitted", "id", id, "service", cmd.String())
	return id, nil
}

// SubmitTracked sends cmd and returns a channel that receives the hub's
// result (or ErrDisconnected if the connection drops first).
func (c *Client) SubmitTracked(ctx context.Context, cmd service.Command) (int64, <-chan event.Result, error) {
	id := c.nextID.Add(1)
	ch := c.pending.Expect(id)
	if err := c.write(ctx, callService(id, cmd)); err != nil {
		c.pending.Forget(id)
		return 0, nil, err
	}
	c.logger.Debug("command submitted", "id", id, "service", cmd.String(), "tracked", true)
	return id, ch, nil
}

// Call sends cmd and waits for the hub's result.
//
// Returns:
//   - event.Result: the hub's answer
//   - error: transport failures, ErrTimeout, or the hub's *event.HubError
func (c *Client) Call(ctx context.Context, cmd service.Command) (event.Result, error) {
	id, ch, err := c.SubmitTracked(ctx, cmd)
	if err != nil {
		return event.Result{}, err
	}
	return c.finish(ctx, id, ch)
}

// FireEvent emits a named event on the hub bus and returns its correlation id.
func (c *Client) FireEvent(ctx context.Context, eventType string, data map[string]any) (int64, error) {
	id := c.nextID.Add(1)
	msg := fireEventMessage{
		request:   request{ID: id, Type: typeFireEvent},
		EventType: eventType,
		EventData: data,
	}
	if err := c.write(ctx, msg); err != nil {
		return 0, err
	}
	c.logger.Debug("event fired", "id", id, "event_type", eventType)
	return id, nil
}

// States fetches the hub's current state of every entity. The store is
// not touched; reseeding happens automatically on every connect.
func (c *Client) States(ctx context.Context) ([]event.StateRecord, error) {
	id := c.nextID.Add(1)
	ch := c.pending.Expect(id)
	if err := c.write(ctx, request{ID: id, Type: typeGetStates}); err != nil {
		c.pending.Forget(id)
		return nil, err
	}
	r, err := c.finish(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	return decodeStates(r.Data)
}

// Ping sends an application-level ping and waits for the pong.
func (c *Client) Ping(ctx context.Context) error {
	id := c.nextID.Add(1)
	ch := c.pending.Expect(id)
	if err := c.write(ctx, request{ID: id, Type: typePing}); err != nil {
		c.pending.Forget(id)
		return err
	}
	_, err := c.finish(ctx, id, ch)
	return err
}

// finish waits for id's result and converts a hub failure into an error.
func (c *Client) finish(ctx context.Context, id int64, ch <-chan event.Result) (event.Result, error) {
	r, err := c.await(ctx, ch)
	if err != nil {
		c.pending.Forget(id)
		return r, err
	}
	if r.Err != nil {
		return r, r.Err
	}
	return r, nil
}
