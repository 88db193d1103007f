package handlers

import (
	"errors"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/response"
	"github.com/gin-gonic/gin"
)

// toAppError maps service errors onto HTTP statuses. Anything unknown is a 500.
func toAppError(err error) *response.AppError {
	var appErr *response.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, services.ErrMemberNotFound), errors.Is(err, services.ErrTaskNotFound):
		return response.Wrap(response.NewNotFound(err.Error()), err)
	case errors.Is(err, services.ErrInvalidLeaveStatus),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrInvalidInput):
		return response.Wrap(response.NewBadRequest(err.Error()), err)
	case errors.Is(err, services.ErrSourceNotConfigured),
		errors.Is(err, services.ErrGmailNotConfigured),
		errors.Is(err, services.ErrOracleNotConfigured),
		errors.Is(err, services.ErrPingNotConfigured):
		return response.Wrap(response.NewConflict(err.Error()), err)
	case errors.Is(err, services.ErrSourceUnavailable),
		errors.Is(err, services.ErrGmailUnavailable),
		errors.Is(err, services.ErrPingFailed):
		return response.Wrap(response.NewBadGateway(err.Error()), err)
	}
	return response.Wrap(response.NewServerError("internal server error"), err)
}

func fail(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= 500 {
		logger.Errorf("[API] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	response.Error(c, appErr)
}
