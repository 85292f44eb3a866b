package ragdoc

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	Stats  endpoint.Endpoint
	Search endpoint.Endpoint
	Ingest endpoint.Endpoint
	Ask    endpoint.Endpoint
}

func MakeEndpoints(svc Service) EndpointSet {
	return EndpointSet{
		Stats:  StatsEndpoint(svc),
		Search: SearchEndpoint(svc),
		Ingest: IngestEndpoint(svc),
		Ask:    AskEndpoint(svc),
	}
}

type StatsRequest struct {
	Client string `json:"client" form:"client" binding:"required"`
}

type StatsResponse struct {
	Client string `json:"client"`
	Count  int    `json:"count"`
}

func StatsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(StatsRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		count, err := svc.Stats(ctx, req.Client)
		if err != nil {
			return nil, err
		}

		return StatsResponse{
			Client: req.Client,
			Count:  count,
		}, nil
	}
}

type SearchRequest struct {
	Client string `json:"client" form:"client" binding:"required"`
	Query  string `json:"q" form:"q" binding:"required"`
	TopK   int    `json:"top_k,omitempty" form:"top_k"`
}

type SearchResponse struct {
	Client string `json:"client"`
	Query  string `json:"q"`
	Hits   []Hit  `json:"hits"`
}

func SearchEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(SearchRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		hits, err := svc.Search(ctx, req.Client, req.Query, req.TopK)
		if err != nil {
			return nil, err
		}

		return SearchResponse{
			Client: req.Client,
			Query:  req.Query,
			Hits:   hits,
		}, nil
	}
}

type IngestRequest struct {
	Client     string `json:"client" binding:"required"`
	Filename   string `json:"filename" binding:"required"`
	ContentB64 string `json:"content_b64"`
}

type IngestResponse struct {
	OK       bool   `json:"ok"`
	Client   string `json:"client"`
	Filename string `json:"filename"`
	Added    int    `json:"added"`
}

func IngestEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		added, err := svc.Ingest(ctx, req.Client, req.Filename, req.ContentB64)
		if err != nil {
			return nil, err
		}

		return IngestResponse{
			OK:       true,
			Client:   req.Client,
			Filename: req.Filename,
			Added:    added,
		}, nil
	}
}

type AskRequest struct {
	Client string `json:"client" binding:"required"`
	Query  string `json:"q" binding:"required"`
	TopK   int    `json:"top_k,omitempty"`
}

type AskResponse = Answer

func AskEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(AskRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		answer, err := svc.Ask(ctx, req.Client, req.Query, req.TopK)
		if err != nil {
			return nil, err
		}

		return *answer, nil
	}
}
