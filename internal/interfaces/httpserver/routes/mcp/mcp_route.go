package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/infrastructure/auth"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/responses"
	"jan-server/services/grant-scout/utils/platformerrors"
)

type contextKey string

// UserIDKey holds the authenticated user id on MCP request contexts.
const UserIDKey contextKey = "user_id"

var allowedMCPMethods = map[string]bool{
	// Initialization / handshake
	"initialize":                true,
	"notifications/initialized": true,
	"ping":                      true,

	// Tools
	"tools/list": true,
	"tools/call": true,
}

type MCPRoute struct {
	grantMCP    *GrantMCP
	mcpServer   *mcp.Server
	httpHandler http.Handler
}

func NewMCPRoute(grantMCP *GrantMCP) *MCPRoute {
	impl := &mcp.Implementation{
		Name:    "grant-scout",
		Version: "1.0.0",
	}
	server := mcp.NewServer(impl, nil)
	grantMCP.RegisterTools(server)

	return &MCPRoute{
		grantMCP:  grantMCP,
		mcpServer: server,
		httpHandler: mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
			return server
		}, &mcp.StreamableHTTPOptions{Stateless: true}),
	}
}

// Server returns the underlying MCP server.
func (route *MCPRoute) Server() *mcp.Server {
	return route.mcpServer
}

func (route *MCPRoute) RegisterRouter(router *gin.RouterGroup) {
	router.POST("/mcp",
		MCPMethodGuard(allowedMCPMethods),
		InjectUserContext(),
		route.serveMCP,
	)
}

// ServeStdio serves the tools over stdin/stdout until ctx ends or the
// client disconnects.
func (route *MCPRoute) ServeStdio(ctx context.Context) error {
	log.Info().Msg("serving MCP over stdio")
	return route.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// serveMCP streams Model Context Protocol responses using the underlying MCP server.
// @Summary MCP endpoint for grant tools
// @Description Handles Model Context Protocol (MCP) requests over HTTP. Supports MCP methods: initialize, ping, tools/list, tools/call.
// @Description
// @Description **Available Tools:**
// @Description - `search_items`: Search for grants (params: query, category, useWeb).
// @Description - `save_item`: Save a grant record (params: name, organization, description, eligibility, amount, deadline, applicationProcess, url, category, requirementDetails, exclusions, contactInfo).
// @Description - `get_items_by_category`: List saved grants (params: category).
// @Description - `generate_markdown_summary`: Markdown report of saved grants (params: title, category, includeIntro, includeConclusion).
// @Description
// @Description Every tool returns the envelope {text, data, error, isError} as structured content.
// @Tags MCP API
// @Accept json
// @Produce text/event-stream
// @Param request body object true "MCP JSON-RPC request payload (e.g., {\"jsonrpc\":\"2.0\",\"method\":\"tools/list\",\"id\":1})"
// @Success 200 {string} string "Streamed MCP response in SSE format"
// @Failure 400 {object} responses.ErrorResponse "Invalid MCP request payload or unsupported method"
// @Failure 500 {object} responses.ErrorResponse "Internal server error"
// @Router /v1/mcp [post]
func (route *MCPRoute) serveMCP(reqCtx *gin.Context) {
	// Force acceptable content types for go-sdk streamable handler even if client omits Accept.
	reqCtx.Request.Header.Set("Accept", "application/json, text/event-stream")
	route.httpHandler.ServeHTTP(reqCtx.Writer, reqCtx.Request)
}

// InjectUserContext copies the authenticated user id into the request context
func InjectUserContext() gin.HandlerFunc {
	return func(reqCtx *gin.Context) {
		if userID := auth.UserID(reqCtx); userID != "" {
			ctx := context.WithValue(reqCtx.Request.Context(), UserIDKey, userID)
			reqCtx.Request = reqCtx.Request.WithContext(ctx)
		}
		reqCtx.Next()
	}
}

func MCPMethodGuard(allowedMethods map[string]bool) gin.HandlerFunc {
	return func(reqCtx *gin.Context) {
		bodyBytes, err := io.ReadAll(reqCtx.Request.Body)
		if err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeInternal, "failed to read MCP request body", "4b7e1d09-c2a6-4f38-9e05-d81a6c3f2b74")
			return
		}
		_ = reqCtx.Request.Body.Close()

		if len(bodyBytes) == 0 {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "empty MCP request body", "91c5a3f2-7d08-4e6b-a1c9-3f6e2d0b85a7")
			return
		}

		reqCtx.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var payload struct {
			Method string `json:"method"`
		}

		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid MCP request payload", "d6f08b3e-15a9-4c72-b8e4-0a2c9f7d61e3")
			return
		}

		if payload.Method == "" {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "missing method field in MCP request", "2e9c7a41-b853-4d0f-96a2-5c1e8b3f0d67")
			return
		}

		if !allowedMethods[payload.Method] {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "unsupported MCP method: "+payload.Method, "a03d5f8c-6e21-4b97-8c4a-f7b2e0d1c359")
			return
		}

		reqCtx.Next()
	}
}
