package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	mcpE "github.com/flarexio/ragdoc/mcp"
)

func rpcError(id mcp.RequestId, code int, message string) mcp.JSONRPCError {
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

func MCPStreamableHandler(endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req mcpE.JSONRPCRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			resp := rpcError(req.ID, mcp.PARSE_ERROR, err.Error())
			c.AbortWithStatusJSON(http.StatusBadRequest, &resp)
			return
		}

		// notifications are acknowledged without a body
		if req.ID.IsNil() {
			c.Status(http.StatusAccepted)
			return
		}

		endpoint, ok := endpoints[req.Method]
		if !ok {
			resp := rpcError(req.ID, mcp.METHOD_NOT_FOUND, "method not found")
			c.AbortWithStatusJSON(http.StatusNotFound, &resp)
			return
		}

		ctx := c.Request.Context()
		resp := endpoint(ctx, req)

		c.JSON(http.StatusOK, &resp)
	}
}
