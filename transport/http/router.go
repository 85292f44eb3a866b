package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/ragdoc"

	mcpE "github.com/flarexio/ragdoc/mcp"
)

func AddRouters(r *gin.Engine, endpoints ragdoc.EndpointSet, actionKey string) {
	r.GET("/", HomeHandler())
	r.GET("/stats", StatsHandler(endpoints.Stats))
	r.GET("/search", SearchHandler(endpoints.Search))

	protected := r.Group("/", ActionKeyMiddleware(actionKey))
	{
		protected.POST("/ingest_json", IngestHandler(endpoints.Ingest))
		protected.POST("/ask", AskHandler(endpoints.Ask))
	}
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint, actionKey string) {
	mcp := r.Group("/mcp", ActionKeyMiddleware(actionKey))
	{
		mcp.POST("/", MCPStreamableHandler(endpoints))
	}
}

func AddMetricsRouter(r *gin.Engine, handler http.Handler) {
	r.GET("/metrics", gin.WrapH(handler))
}
