package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/ragdoc"
)

// MakeEndpoints builds client-side endpoints that call a remote ragdoc
// service under the given topic prefix.
func MakeEndpoints(nc *nats.Conn, prefix string, timeout time.Duration) *ragdoc.EndpointSet {
	if timeout <= 0 {
		timeout = nats.DefaultTimeout
	}

	return &ragdoc.EndpointSet{
		Stats:  StatsEndpoint(nc, prefix+".stats", timeout),
		Search: SearchEndpoint(nc, prefix+".search", timeout),
		Ingest: IngestEndpoint(nc, prefix+".ingest", timeout),
		Ask:    AskEndpoint(nc, prefix+".ask", timeout),
	}
}

func doRequest(ctx context.Context, nc *nats.Conn, topic string, req any, timeout time.Duration) (*nats.Msg, error) {
	data, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}

	header := make(nats.Header)

	key, ok := ctx.Value(ragdoc.ActionKey).(string)
	if ok {
		header.Set(HeaderActionKey, key)
	}

	msg := nats.NewMsg(topic)
	msg.Header = header
	msg.Data = data

	resp, err := nc.RequestMsg(msg, timeout)
	if err != nil {
		return nil, err
	}

	if err := Error(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func StatsEndpoint(nc *nats.Conn, topic string, timeout time.Duration) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ragdoc.StatsRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		resp, err := doRequest(ctx, nc, topic, req, timeout)
		if err != nil {
			return nil, err
		}

		var result ragdoc.StatsResponse
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, err
		}

		return result, nil
	}
}

func SearchEndpoint(nc *nats.Conn, topic string, timeout time.Duration) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ragdoc.SearchRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		resp, err := doRequest(ctx, nc, topic, req, timeout)
		if err != nil {
			return nil, err
		}

		var result ragdoc.SearchResponse
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, err
		}

		return result, nil
	}
}

func IngestEndpoint(nc *nats.Conn, topic string, timeout time.Duration) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ragdoc.IngestRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		resp, err := doRequest(ctx, nc, topic, req, timeout)
		if err != nil {
			return nil, err
		}

		var result ragdoc.IngestResponse
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, err
		}

		return result, nil
	}
}

func AskEndpoint(nc *nats.Conn, topic string, timeout time.Duration) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ragdoc.AskRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		resp, err := doRequest(ctx, nc, topic, req, timeout)
		if err != nil {
			return nil, err
		}

		var result ragdoc.AskResponse
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, err
		}

		return result, nil
	}
}

// Error converts the micro error headers of a reply back into a service
// error, so callers can classify it with errors.Is.
func Error(msg *nats.Msg) error {
	if msg == nil {
		return errors.New("nil message")
	}

	code := msg.Header.Get(micro.ErrorCodeHeader)
	if code == "" {
		return nil
	}

	description := msg.Header.Get(micro.ErrorHeader)
	if description == "" {
		description = "unknown error"
	}

	switch code {
	case "400":
		return fmt.Errorf("%w: %s", ragdoc.ErrBadRequest, description)
	case "401":
		return fmt.Errorf("%w: %s", ragdoc.ErrUnauthorized, description)
	case "502":
		return fmt.Errorf("%w: %s", ragdoc.ErrUpstream, description)
	}

	return errors.New(code + ":" + description)
}
