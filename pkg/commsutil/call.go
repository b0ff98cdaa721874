package commsutil

import (
	"context"
	"fmt"

	comms "github.com/nats-io/nats.go"

	"github.com/mpgame/mp-server/pkg/rpc"
)

const callLogPrefix = "commsutil:call"

// Call sends req on subject and waits for the reply. ctx must carry a deadline
// or be cancellable; nats rejects a request context with neither.
func Call(ctx context.Context, nc *comms.Conn, subject string, req *rpc.Request) (*rpc.Response, error) {
	data, err := EncodePayload(req)
	if err != nil {
		return nil, fmt.Errorf("%s - encode request: %w", callLogPrefix, err)
	}

	msg, err := nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("%s - request %s on %s: %w", callLogPrefix, req.Method, subject, err)
	}

	var resp rpc.Response
	if err := DecodePayload(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("%s - decode response: %w", callLogPrefix, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("%s - %w", callLogPrefix, err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("%s - response id %q does not match request id %q", callLogPrefix, resp.ID, req.ID)
	}
	return &resp, nil
}
