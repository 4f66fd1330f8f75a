package server

import (
	"github.com/gin-gonic/gin"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError classifies err and answers with the matching status.
func writeError(c *gin.Context, err error) {
	info := zkerrors.Classify(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(info.HTTPStatus, ErrorBody{Error: ErrorDetail{
		Code:      info.Code,
		Message:   info.Message,
		Action:    info.Action,
		Detail:    err.Error(),
		RequestID: getRequestID(c),
	}})
}
