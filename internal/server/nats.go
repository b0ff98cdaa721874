package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/mpgame/mp-server/pkg/commsutil"
	"github.com/mpgame/mp-server/pkg/rpc"
)

const commsLogPrefix = "server:nats"

// subscribe joins the RPC queue group so several instances share the load.
func (s *Server) subscribe() error {
	sub, err := s.nc.QueueSubscribe(s.cfg.RPCSubject, s.cfg.ServiceName, func(msg *comms.Msg) {
		if !s.inflight.acquire() {
			s.reject(msg)
			return
		}
		go func() {
			defer s.inflight.release()
			s.respond(msg)
		}()
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", commsLogPrefix, s.cfg.RPCSubject, err)
	}
	s.sub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s (queue %s)", commsLogPrefix, s.cfg.RPCSubject, s.cfg.ServiceName))
	return nil
}

func (s *Server) respond(msg *comms.Msg) {
	reply := s.handleCommsRequest(s.baseCtx, msg.Data)
	if err := msg.Respond(reply); err != nil {
		if errors.Is(err, comms.ErrMsgNoReply) {
			slog.Debug(fmt.Sprintf("%s - request on %s had no reply subject", commsLogPrefix, msg.Subject))
			return
		}
		slog.Error(fmt.Sprintf("%s - failed to respond: %v", commsLogPrefix, err))
	}
}

// reject answers a request received after Shutdown began.
func (s *Server) reject(msg *comms.Msg) {
	var req rpc.Request
	_ = commsutil.DecodePayload(msg.Data, &req)
	out, err := commsutil.EncodePayload(unavailable(req.ID))
	if err != nil {
		return
	}
	if err := msg.Respond(out); err != nil && !errors.Is(err, comms.ErrMsgNoReply) {
		slog.Debug(fmt.Sprintf("%s - failed to reject request: %v", commsLogPrefix, err))
	}
}

// handleCommsRequest decodes one request envelope, dispatches it and returns
// the encoded response. Undecodable input gets a parse error reply.
func (s *Server) handleCommsRequest(ctx context.Context, data []byte) []byte {
	var req rpc.Request
	var resp *rpc.Response
	if err := commsutil.DecodePayload(data, &req); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to decode request: %v", commsLogPrefix, err))
		resp = rpc.NewErrorResponse("", rpc.CodeParseError, "parse error")
	} else {
		resp = s.dispatch(ctx, &req)
	}

	out, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", commsLogPrefix, err))
		out, _ = commsutil.EncodePayload(rpc.NewErrorResponse(req.ID, rpc.CodeHandlerFailure, "failed to encode response"))
	}
	return out
}
