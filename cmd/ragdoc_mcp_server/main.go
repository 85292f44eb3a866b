package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"github.com/flarexio/ragdoc"

	mcpE "github.com/flarexio/ragdoc/mcp"
	natsT "github.com/flarexio/ragdoc/transport/nats"
)

type StdioMCPServer interface {
	AddEndpoint(method mcp.MCPMethod, endpoint mcpE.MCPEndpoint) error
	Listen(ctx context.Context) error
}

func NewStdioMCPServer(in io.Reader, out io.Writer) StdioMCPServer {
	return &stdioMCPServer{
		endpoints: make(map[mcp.MCPMethod]mcpE.MCPEndpoint),
		in:        in,
		out:       out,
	}
}

type stdioMCPServer struct {
	endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint
	in        io.Reader
	out       io.Writer
}

func (s *stdioMCPServer) handle(ctx context.Context, line string) (mcp.JSONRPCMessage, bool) {
	var req mcpE.JSONRPCRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return nil, false
	}

	// notifications carry no id and expect no response
	if req.ID.IsNil() {
		return nil, false
	}

	endpoint, ok := s.endpoints[req.Method]
	if !ok {
		return mcp.JSONRPCError{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Error: struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
				Data    any    `json:"data,omitempty"`
			}{
				Code:    mcp.METHOD_NOT_FOUND,
				Message: "method not found",
			},
		}, true
	}

	return endpoint(ctx, req), true
}

func (s *stdioMCPServer) Listen(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lines := make(chan string)
	errs := make(chan error, 1)

	go func(ctx context.Context, lines chan<- string, errs chan<- error) {
		defer close(lines)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}(ctx, lines, errs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errs:
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err

		case line, ok := <-lines:
			if !ok {
				return nil
			}

			if line == "" {
				continue
			}

			resp, ok := s.handle(ctx, line)
			if !ok {
				continue
			}

			bs, err := json.Marshal(resp)
			if err != nil {
				continue
			}

			fmt.Fprintf(s.out, "%s\n", bs)
		}
	}
}

func (s *stdioMCPServer) AddEndpoint(method mcp.MCPMethod, endpoint mcpE.MCPEndpoint) error {
	_, ok := s.endpoints[method]
	if ok {
		return errors.New("endpoint already exists")
	}

	s.endpoints[method] = endpoint
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "ragdoc_mcp_server",
		Usage: "ragdoc MCP Server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL",
				Value:   nats.DefaultURL,
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.StringFlag{
				Name:    "nats-creds",
				Usage:   "NATS user credentials file",
				Sources: cli.EnvVars("NATS_CREDS"),
			},
			&cli.StringFlag{
				Name:  "nats-topic",
				Usage: "NATS topic of the ragdoc service group",
				Value: "ragdoc",
			},
			&cli.StringFlag{
				Name:    "action-key",
				Usage:   "Shared secret forwarded to the ragdoc service",
				Sources: cli.EnvVars("ACTION_KEY"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout for remote calls",
				Value: 3 * time.Minute,
			},
		},
		Action: run,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	natsURL := cmd.String("nats")

	opts := []nats.Option{
		nats.Name("ragdoc MCP Server"),
	}

	if creds := cmd.String("nats-creds"); creds != "" {
		opts = append(opts, nats.UserCredentials(creds))
	}

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return err
	}
	defer nc.Drain()

	endpoints := natsT.MakeEndpoints(nc, cmd.String("nats-topic"), cmd.Duration("timeout"))

	var svc ragdoc.Service
	svc = ragdoc.ProxyMiddleware(endpoints)(svc)

	if key := cmd.String("action-key"); key != "" {
		ctx = context.WithValue(ctx, ragdoc.ActionKey, key)
	}

	s := NewStdioMCPServer(os.Stdin, os.Stdout)
	s.AddEndpoint(mcp.MethodInitialize, mcpE.InitializeEndpoint(svc))
	s.AddEndpoint(mcp.MethodPing, mcpE.PingEndpoint(svc))
	s.AddEndpoint(mcp.MethodToolsList, mcpE.ListToolsEndpoint(svc))
	s.AddEndpoint(mcp.MethodToolsCall, mcpE.CallToolEndpoint(svc))

	go s.Listen(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	<-quit

	cancel()
	return nil
}
