package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every API call answers with.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AppError carries the HTTP status and envelope code for a failed call.
type AppError struct {
	HTTPStatus int
	Code       int
	Message    string
	Err        error // underlying cause, never serialized
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(status int, msg string) *AppError {
	return &AppError{HTTPStatus: status, Code: status, Message: msg}
}

func NewBadRequest(msg string) *AppError { return newAppError(http.StatusBadRequest, msg) }
func NewNotFound(msg string) *AppError   { return newAppError(http.StatusNotFound, msg) }
func NewConflict(msg string) *AppError   { return newAppError(http.StatusConflict, msg) }
func NewServerError(msg string) *AppError {
	return newAppError(http.StatusInternalServerError, msg)
}

// NewBadGateway reports an upstream (chat source, calendar source) that could not be read at all.
func NewBadGateway(msg string) *AppError {
	return newAppError(http.StatusBadGateway, msg)
}

func NewTooManyRequests(msg string) *AppError {
	return newAppError(http.StatusTooManyRequests, msg)
}

// Wrap attaches a cause to an AppError so errors.Is keeps working upstream.
func Wrap(appErr *AppError, cause error) *AppError {
	cp := *appErr
	cp.Err = cause
	return &cp
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "created", Data: data})
}

// Accepted is used when work was scheduled in the background.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{Code: 0, Message: "accepted", Data: data})
}

// Error writes err as an envelope. Non-AppError values become a 500.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(appErr.HTTPStatus, Response{
			Code:    appErr.Code,
			Message: appErr.Message,
		})
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
	})
}

func BadRequest(c *gin.Context, msg string) {
	Error(c, NewBadRequest(msg))
}

func NotFound(c *gin.Context, msg string) {
	Error(c, NewNotFound(msg))
}

func TooManyRequests(c *gin.Context, msg string) {
	Error(c, NewTooManyRequests(msg))
}

func ServerError(c *gin.Context, msg string) {
	Error(c, NewServerError(msg))
}
