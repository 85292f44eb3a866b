package nats

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/ragdoc"
)

const HeaderActionKey = "x-api-key"

// ErrorCode maps a service error onto the HTTP-like code carried in the
// micro error header.
func ErrorCode(err error) string {
	switch {
	case ragdoc.IsClientError(err):
		return "400"
	case errors.Is(err, ragdoc.ErrUnauthorized):
		return "401"
	case errors.Is(err, ragdoc.ErrUpstream):
		return "502"
	default:
		return "500"
	}
}

func respondError(r micro.Request, err error) {
	r.Error(ErrorCode(err), err.Error(), nil)
}

func StatsHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req ragdoc.StatsRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			respondError(r, err)
			return
		}

		r.RespondJSON(&resp)
	}
}

func SearchHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req ragdoc.SearchRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			respondError(r, err)
			return
		}

		r.RespondJSON(&resp)
	}
}

func IngestHandler(endpoint endpoint.Endpoint, actionKey string) micro.HandlerFunc {
	return func(r micro.Request) {
		if err := ragdoc.CheckActionKey(actionKey, r.Headers().Get(HeaderActionKey)); err != nil {
			respondError(r, err)
			return
		}

		var req ragdoc.IngestRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			respondError(r, err)
			return
		}

		r.RespondJSON(&resp)
	}
}

func AskHandler(endpoint endpoint.Endpoint, actionKey string) micro.HandlerFunc {
	return func(r micro.Request) {
		if err := ragdoc.CheckActionKey(actionKey, r.Headers().Get(HeaderActionKey)); err != nil {
			respondError(r, err)
			return
		}

		var req ragdoc.AskRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			respondError(r, err)
			return
		}

		r.RespondJSON(&resp)
	}
}
