package grants

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/grant-scout/internal/interfaces/httpserver/handlers/granthandler"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/requests"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/responses"
	"jan-server/services/grant-scout/utils/platformerrors"
)

type GrantsRoute struct {
	handler *granthandler.GrantHandler
}

func NewGrantsRoute(handler *granthandler.GrantHandler) *GrantsRoute {
	return &GrantsRoute{handler: handler}
}

func (route *GrantsRoute) RegisterRouter(router *gin.RouterGroup) {
	group := router.Group("/items")
	group.POST("/search", route.searchItems)
	group.POST("", route.saveItem)
	group.GET("", route.getItemsByCategory)
	group.POST("/summary", route.generateSummary)
}

// searchItems godoc
// @Summary Search for grants
// @Description Asks the generative source and, unless useWeb is false, the web and every configured site for matching programmes. Web results that match a saved grant refresh it in place. When the service is busy or the search runs out of time a reduced answer is returned; data.outcome tells which.
// @Tags Grants API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body requests.SearchItemsRequest true "Search request"
// @Success 200 {object} responses.ToolResponse "Matching grants in data.items"
// @Failure 400 {object} responses.ErrorResponse "Invalid request"
// @Failure 500 {object} responses.ToolResponse "Search failed"
// @Router /v1/items/search [post]
func (route *GrantsRoute) searchItems(reqCtx *gin.Context) {
	var req requests.SearchItemsRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "3a9f0c2d-71e4-4b58-9d6a-0e2c8b4f17a3")
		return
	}
	resp, err := route.handler.SearchItems(reqCtx.Request.Context(), granthandler.TransportHTTP, req)
	if err != nil {
		responses.HandleError(reqCtx, err, granthandler.ValidationMessage(err))
		return
	}
	responses.WriteTool(reqCtx, resp)
}

// saveItem godoc
// @Summary Save a grant
// @Description Persists a manually entered grant. The id, creation time and source are assigned by the service.
// @Tags Grants API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body requests.SaveItemRequest true "Grant attributes"
// @Success 200 {object} responses.ToolResponse "Saved grant in data"
// @Failure 400 {object} responses.ErrorResponse "Invalid request"
// @Failure 500 {object} responses.ToolResponse "Grant could not be stored"
// @Router /v1/items [post]
func (route *GrantsRoute) saveItem(reqCtx *gin.Context) {
	var req requests.SaveItemRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "b5e2417c-09d3-4f6a-8c1e-6d7a3f0b92e5")
		return
	}
	resp, err := route.handler.SaveItem(reqCtx.Request.Context(), granthandler.TransportHTTP, req)
	if err != nil {
		responses.HandleError(reqCtx, err, granthandler.ValidationMessage(err))
		return
	}
	responses.WriteTool(reqCtx, resp)
}

// getItemsByCategory godoc
// @Summary List saved grants
// @Description Returns saved grants whose category contains the filter, ignoring case. Without a filter every saved grant is returned.
// @Tags Grants API
// @Security BearerAuth
// @Produce json
// @Param category query string false "Category filter"
// @Success 200 {object} responses.ToolResponse "Saved grants in data.items"
// @Failure 400 {object} responses.ErrorResponse "Invalid request"
// @Failure 500 {object} responses.ToolResponse "Grants could not be read"
// @Router /v1/items [get]
func (route *GrantsRoute) getItemsByCategory(reqCtx *gin.Context) {
	var req requests.ItemsByCategoryRequest
	if err := reqCtx.ShouldBindQuery(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid query parameters", "7d14c8a0-5e2b-4f93-a6d7-1b9e0f3c5a48")
		return
	}
	resp, err := route.handler.GetItemsByCategory(reqCtx.Request.Context(), granthandler.TransportHTTP, req)
	if err != nil {
		responses.HandleError(reqCtx, err, granthandler.ValidationMessage(err))
		return
	}
	responses.WriteTool(reqCtx, resp)
}

// generateSummary godoc
// @Summary Generate a markdown summary
// @Description Renders the saved grants of a category, or all of them, as a markdown report.
// @Tags Grants API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body requests.SummaryRequest true "Summary request"
// @Success 200 {object} responses.ToolResponse "Markdown report in text"
// @Failure 400 {object} responses.ErrorResponse "Invalid request"
// @Failure 500 {object} responses.ToolResponse "Summary generation failed"
// @Router /v1/items/summary [post]
func (route *GrantsRoute) generateSummary(reqCtx *gin.Context) {
	var req requests.SummaryRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "e0c93b57-2a6f-4d18-b4e1-8f5d7a2c03b9")
		return
	}
	resp, err := route.handler.GenerateMarkdownSummary(reqCtx.Request.Context(), granthandler.TransportHTTP, req)
	if err != nil {
		responses.HandleError(reqCtx, err, granthandler.ValidationMessage(err))
		return
	}
	responses.WriteTool(reqCtx, resp)
}
