// Package main is mp-call, a command-line client that sends one request to
// mp-server and prints the response.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mpgame/mp-server/pkg/commsutil"
	"github.com/mpgame/mp-server/pkg/rpc"
)

const usage = `Usage: mp-call [flags] <method> [params-json]

Sends one request and prints the response envelope as JSON.

Examples:
  mp-call system.getVersion
  mp-call game.join '{"player_name":"alice"}'
  mp-call -http http://localhost:3000 game.listPlayers

Flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "mp-call: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mp-call", flag.ContinueOnError)
	fs.SetOutput(stderr)
	natsURL := fs.String("url", envOr("NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")
	subject := fs.String("subject", envOr("RPC_SUBJECT", commsutil.SubjectRPC), "RPC subject")
	httpURL := fs.String("http", "", "send over HTTP to this base URL instead of NATS")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return errors.New("expected <method> [params-json]")
	}

	req, err := buildRequest(fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var resp *rpc.Response
	if *httpURL != "" {
		resp, err = callHTTP(ctx, *httpURL, req)
	} else {
		resp, err = callComms(ctx, *natsURL, *subject, req)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	fmt.Fprintln(stdout, string(out))
	if resp.IsError() {
		return fmt.Errorf("request failed with code %d", resp.Error.Code)
	}
	return nil
}

// buildRequest creates a request with a fresh id. Empty params become null.
func buildRequest(method, params string) (*rpc.Request, error) {
	if strings.TrimSpace(method) == "" {
		return nil, errors.New("method is required")
	}
	raw := json.RawMessage("null")
	if strings.TrimSpace(params) != "" {
		if !json.Valid([]byte(params)) {
			return nil, fmt.Errorf("params is not valid JSON: %s", params)
		}
		raw = json.RawMessage(params)
	}
	return &rpc.Request{ID: uuid.NewString(), Method: method, Params: raw}, nil
}

func callComms(ctx context.Context, url, subject string, req *rpc.Request) (*rpc.Response, error) {
	nc, err := commsutil.Connect(url, "mp-call")
	if err != nil {
		return nil, err
	}
	defer nc.Close()
	return commsutil.Call(ctx, nc, subject, req)
}

func callHTTP(ctx context.Context, baseURL string, req *rpc.Request) (*rpc.Response, error) {
	body, err := commsutil.EncodePayload(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var resp rpc.Response
	if err := commsutil.DecodePayload(data, &resp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(data)))
	}
	if resp.ID != "" && resp.ID != req.ID {
		return nil, fmt.Errorf("response id %q does not match request id %q", resp.ID, req.ID)
	}
	return &resp, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
