package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jan-server/services/grant-scout/utils/platformerrors"
)

type ErrorResponse struct {
	Code          string `json:"code"` // UUID from PlatformError
	Error         string `json:"error"`
	ErrorInstance error  `json:"-"`
	RequestID     string `json:"request_id,omitempty"`
}

// ToolResponse is the envelope returned by every operation on both
// transports.
type ToolResponse struct {
	Text    string `json:"text"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	IsError bool   `json:"isError"`
}

// Success builds a successful envelope.
func Success(text string, data any) ToolResponse {
	return ToolResponse{Text: text, Data: data}
}

// Failure builds an error envelope.
func Failure(text string, err error) ToolResponse {
	resp := ToolResponse{Text: text, IsError: true}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// WriteTool writes an envelope, mapping the error flag to status 500.
func WriteTool(reqCtx *gin.Context, resp ToolResponse) {
	status := http.StatusOK
	if resp.IsError {
		status = http.StatusInternalServerError
	}
	reqCtx.JSON(status, resp)
}

// HandleError handles domain errors and returns appropriate HTTP responses
// The message parameter is used directly as the error message in the response
// Status code is automatically determined from the error type
func HandleError(reqCtx *gin.Context, err error, message string) {
	var domainErr *platformerrors.PlatformError
	if errors.As(err, &domainErr) {
		statusCode := platformerrors.ErrorTypeToHTTPStatus(domainErr.GetErrorType())

		errResp := ErrorResponse{
			Code:          domainErr.GetUUID(),
			Error:         message,
			ErrorInstance: domainErr,
			RequestID:     domainErr.GetRequestID(),
		}

		_ = reqCtx.Error(domainErr)
		reqCtx.AbortWithStatusJSON(statusCode, errResp)
		return
	}

	errResp := ErrorResponse{
		Error:         message,
		ErrorInstance: err,
	}
	if err != nil {
		_ = reqCtx.Error(err)
	}
	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
}

// HandleNewError creates a new typed error at the route layer and handles it
// The uuid parameter should be provided from the route for error tracking
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	ctx := reqCtx.Request.Context()
	err := platformerrors.NewError(ctx, platformerrors.LayerRoute, errorType, message, nil, uuid)

	statusCode := platformerrors.ErrorTypeToHTTPStatus(err.GetErrorType())

	errResp := ErrorResponse{
		Code:          err.GetUUID(),
		Error:         message,
		ErrorInstance: err,
		RequestID:     err.GetRequestID(),
	}

	reqCtx.AbortWithStatusJSON(statusCode, errResp)
}
