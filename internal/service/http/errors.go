package httpsvc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const internalErrorDetail = "internal server error"

// errorHandler переводит ошибки обработчиков в HTTP-ответ {"detail": "..."}.
func errorHandler(logger *log.Entry) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, detail := classify(err)
		if status >= http.StatusInternalServerError {
			logger.WithError(err).WithFields(log.Fields{
				"method": c.Request().Method,
				"path":   c.Request().URL.Path,
			}).Error("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, errorResponse{Detail: detail})
		}
		if writeErr != nil {
			logger.WithError(writeErr).Warn("failed to write error response")
		}
	}
}

func classify(err error) (int, string) {
	var (
		httpErr       *echo.HTTPError
		validationErr *domain.ValidationError
		fieldErrs     validator.ValidationErrors
	)

	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code, fmt.Sprint(httpErr.Message)
	case errors.As(err, &fieldErrs):
		return http.StatusBadRequest, describeFieldErrors(fieldErrs)
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case domain.IsOrderRejected(err):
		var rejected *domain.OrderRejectedError
		errors.As(err, &rejected)
		return http.StatusBadRequest, rejected.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrSellerNotFound):
		// Несуществующий продавец в теле запроса считается ошибкой клиента, а не отсутствием ресурса.
		return http.StatusBadRequest, domain.ErrSellerNotFound.Error()
	case domain.IsNotFound(err):
		return http.StatusNotFound, rootMessage(err)
	case domain.IsConflict(err):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, domain.ErrIdempotencyHashMismatch),
		errors.Is(err, domain.ErrIdempotencyInProgress):
		return http.StatusConflict, rootMessage(err)
	default:
		return http.StatusInternalServerError, internalErrorDetail
	}
}

// rootMessage возвращает текст sentinel-ошибки без префиксов обёрток.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrUserNotFound,
		domain.ErrProductNotFound,
		domain.ErrOrderNotFound,
		domain.ErrEmailTaken,
		domain.ErrSellerEmailTaken,
		domain.ErrUserHasOrders,
		domain.ErrProductReferenced,
		domain.ErrIdempotencyHashMismatch,
		domain.ErrIdempotencyInProgress,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func describeFieldErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", field))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email", field))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "gt", "gte":
			parts = append(parts, fmt.Sprintf("%s must be %s %s", field, tagOperator(fe.Tag()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(parts, "; ")
}

func tagOperator(tag string) string {
	if tag == "gt" {
		return ">"
	}
	return ">="
}
