package ragdoc

import (
	"context"
	"errors"
)

// ProxyMiddleware discards the wrapped service and forwards every call to
// the given endpoints, typically remote ones.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return errors.New("method not implemented")
}

func (mw *proxyMiddleware) Stats(ctx context.Context, client string) (int, error) {
	req := StatsRequest{
		Client: client,
	}

	resp, err := mw.endpoints.Stats(ctx, req)
	if err != nil {
		return 0, err
	}

	result, ok := resp.(StatsResponse)
	if !ok {
		return 0, errors.New("invalid response type")
	}

	return result.Count, nil
}

func (mw *proxyMiddleware) Search(ctx context.Context, client string, query string, k ...int) ([]Hit, error) {
	n := 0
	if len(k) > 0 {
		n = k[0]
	}

	req := SearchRequest{
		Client: client,
		Query:  query,
		TopK:   n,
	}

	resp, err := mw.endpoints.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	result, ok := resp.(SearchResponse)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return result.Hits, nil
}

func (mw *proxyMiddleware) Ingest(ctx context.Context, client string, filename string, contentB64 string) (int, error) {
	req := IngestRequest{
		Client:     client,
		Filename:   filename,
		ContentB64: contentB64,
	}

	resp, err := mw.endpoints.Ingest(ctx, req)
	if err != nil {
		return 0, err
	}

	result, ok := resp.(IngestResponse)
	if !ok {
		return 0, errors.New("invalid response type")
	}

	return result.Added, nil
}

func (mw *proxyMiddleware) Ask(ctx context.Context, client string, question string, k ...int) (*Answer, error) {
	n := 0
	if len(k) > 0 {
		n = k[0]
	}

	req := AskRequest{
		Client: client,
		Query:  question,
		TopK:   n,
	}

	resp, err := mw.endpoints.Ask(ctx, req)
	if err != nil {
		return nil, err
	}

	result, ok := resp.(AskResponse)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return &result, nil
}
