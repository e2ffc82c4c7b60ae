// Command rlsctl is a thin one-shot JSON-RPC client for a running rls
// daemon: it dials the daemon's secondary framed-JSON transport, sends
// a single request built from flags, prints the response, and exits.
// It exists for scripting and manual smoke tests, mirroring the
// teacher's `cmd/iter` one-shot CLI sitting next to `cmd/iter-service`'s
// long-running daemon.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ternarybob/rls/internal/protocol"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "call":
		err = cmdCall(args)
	case "ping":
		err = cmdPing(args)
	case "version", "-v", "--version":
		fmt.Printf("rlsctl version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`rlsctl - one-shot JSON-RPC client for the rls daemon

Usage:
  rlsctl call --method <name> [--params <json>] [--addr host:port] [--timeout 5s]
  rlsctl ping [--addr host:port] [--timeout 5s]
  rlsctl version
  rlsctl help

Environment:
  RLS_LISTEN_ADDRESS   Default --addr, overrides the built-in 127.0.0.1:8421

rlsctl sends a single framed JSON-RPC request over the daemon's secondary
TCP transport (the same internal/dispatch.Server.Serve loop that drives
stdio) and prints the response body.`)
}

func defaultAddr() string {
	if addr := os.Getenv("RLS_LISTEN_ADDRESS"); addr != "" {
		return addr
	}
	return "127.0.0.1:8421"
}

func cmdPing(args []string) error {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	addr := fs.String("addr", defaultAddr(), "daemon address (host:port or /path/to.sock)")
	network := fs.String("network", "tcp", "dial network: tcp or unix")
	timeout := fs.Duration("timeout", 5*time.Second, "dial and round-trip timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	body, err := roundTrip(*network, *addr, *timeout, "rls/ping", nil, 1)
	if err != nil {
		return err
	}
	return printResponse(body)
}

func cmdCall(args []string) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	addr := fs.String("addr", defaultAddr(), "daemon address (host:port or /path/to.sock)")
	network := fs.String("network", "tcp", "dial network: tcp or unix")
	method := fs.String("method", "", "JSON-RPC method name, e.g. textDocument/hover")
	params := fs.String("params", "{}", "JSON-RPC params as a raw JSON object")
	id := fs.Int("id", 1, "JSON-RPC request id")
	timeout := fs.Duration("timeout", 5*time.Second, "dial and round-trip timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *method == "" {
		return fmt.Errorf("--method is required")
	}
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(*params), &raw); err != nil {
		return fmt.Errorf("invalid --params JSON: %w", err)
	}

	body, err := roundTrip(*network, *addr, *timeout, *method, raw, *id)
	if err != nil {
		return err
	}
	return printResponse(body)
}

// roundTrip dials addr, writes one framed request, reads exactly one
// framed reply, and returns its raw body. One connection per call: the
// daemon's loopback listener accepts a fresh connection per request
// the same way cmd/rls's serveLoopback spawns one goroutine per Accept.
func roundTrip(network, addr string, timeout time.Duration, method string, params json.RawMessage, id int) ([]byte, error) {
	conn, err := net.DialTimeout(network, addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	req := &protocol.Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	w := protocol.NewFramedWriter(conn)
	if err := w.WriteMessage(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	r := protocol.NewFramedReader(conn)
	body, err := r.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func printResponse(body []byte) error {
	var pretty interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		// Not valid JSON for some reason; print the raw bytes rather
		// than fail the whole call over a formatting nicety.
		fmt.Println(string(body))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
