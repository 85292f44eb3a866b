package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/ragdoc"
)

const HeaderActionKey = "x-api-key"

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// StatusCode maps a service error onto its HTTP status.
func StatusCode(err error) int {
	switch {
	case ragdoc.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, ragdoc.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ragdoc.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, err error) {
	c.Error(err)
	c.AbortWithStatusJSON(status, &ErrorResponse{
		Detail: err.Error(),
	})
}

func HomeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":  true,
			"msg": "RAG API is running.",
		})
	}
}

// ActionKeyMiddleware rejects requests whose x-api-key header does not match
// the shared secret. An empty secret disables the check.
func ActionKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(HeaderActionKey)
		if err := ragdoc.CheckActionKey(key, presented); err != nil {
			abort(c, http.StatusUnauthorized, err)
			return
		}

		c.Next()
	}
}

func StatsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragdoc.StatsRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func SearchHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragdoc.SearchRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func IngestHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragdoc.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func AskHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragdoc.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}
