package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/ragdoc"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func errorResponse(id mcp.RequestId, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const MCPSERVER_INSTRUCTIONS string = `ragdoc answers questions from documents ingested per client, providing:

1. **Document Search**: Find the paragraphs most similar to a query
2. **Grounded Answers**: Answer a question from the retrieved paragraphs, citing them by [n]
3. **Statistics**: Count the paragraphs stored for a client

Every tool takes a "client" argument naming the document collection to use.`

const (
	ToolSearchDocuments = "search_documents"
	ToolAskDocuments    = "ask_documents"
	ToolDocumentStats   = "document_stats"
)

func Tools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(ToolSearchDocuments,
			mcp.WithDescription("Search a client's documents for the paragraphs most similar to a query."),
			mcp.WithString("client", mcp.Required(), mcp.Description("Client whose documents are searched")),
			mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language query")),
			mcp.WithNumber("top_k", mcp.Description("Number of paragraphs to return")),
		),
		mcp.NewTool(ToolAskDocuments,
			mcp.WithDescription("Answer a question from a client's documents, with the sources used."),
			mcp.WithString("client", mcp.Required(), mcp.Description("Client whose documents are used")),
			mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer")),
			mcp.WithNumber("top_k", mcp.Description("Number of paragraphs to use as context")),
		),
		mcp.NewTool(ToolDocumentStats,
			mcp.WithDescription("Count the paragraphs stored for a client."),
			mcp.WithString("client", mcp.Required(), mcp.Description("Client to inspect")),
		),
	}
}

type ToolArguments struct {
	Client   string `json:"client"`
	Query    string `json:"query"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

func parseArguments(arguments any) (ToolArguments, error) {
	var args ToolArguments
	if arguments == nil {
		return args, nil
	}

	bs, err := json.Marshal(arguments)
	if err != nil {
		return args, err
	}

	err = json.Unmarshal(bs, &args)
	return args, err
}

func InitializeEndpoint(svc ragdoc.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "ragdoc",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc ragdoc.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{}, // empty response
		}
	}
}

func ListToolsEndpoint(svc ragdoc.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: Tools(),
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

var ErrUnknownTool = errors.New("unknown tool")

func callTool(ctx context.Context, svc ragdoc.Service, name string, args ToolArguments) (any, error) {
	switch name {
	case ToolSearchDocuments:
		hits, err := svc.Search(ctx, args.Client, args.Query, args.TopK)
		if err != nil {
			return nil, err
		}

		return ragdoc.SearchResponse{
			Client: args.Client,
			Query:  args.Query,
			Hits:   hits,
		}, nil

	case ToolAskDocuments:
		return svc.Ask(ctx, args.Client, args.Question, args.TopK)

	case ToolDocumentStats:
		count, err := svc.Stats(ctx, args.Client)
		if err != nil {
			return nil, err
		}

		return ragdoc.StatsResponse{
			Client: args.Client,
			Count:  count,
		}, nil

	default:
		return nil, ErrUnknownTool
	}
}

func CallToolEndpoint(svc ragdoc.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		args, err := parseArguments(params.Arguments)
		if err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		output, err := callTool(ctx, svc, params.Name, args)
		if err != nil {
			if errors.Is(err, ErrUnknownTool) {
				return errorResponse(req.ID, mcp.METHOD_NOT_FOUND, err.Error()+": "+params.Name)
			}

			// Tool failures are reported in the result so the model can see them.
			return mcp.JSONRPCResponse{
				JSONRPC: mcp.JSONRPC_VERSION,
				ID:      req.ID,
				Result:  mcp.NewToolResultError(err.Error()),
			}
		}

		bs, err := json.Marshal(output)
		if err != nil {
			return errorResponse(req.ID, mcp.INTERNAL_ERROR, err.Error())
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  mcp.NewToolResultText(string(bs)),
		}
	}
}
