package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/ragdoc"
)

func AddEndpoints(group micro.Group, endpoints ragdoc.EndpointSet, actionKey string) {
	group.AddEndpoint("stats", StatsHandler(endpoints.Stats))
	group.AddEndpoint("search", SearchHandler(endpoints.Search))
	group.AddEndpoint("ingest", IngestHandler(endpoints.Ingest, actionKey))
	group.AddEndpoint("ask", AskHandler(endpoints.Ask, actionKey))
}
