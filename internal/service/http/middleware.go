package httpsvc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/idempotency"
)

// IdempotencyKeyHeader: заголовок с ключом идемпотентности.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader выставляется на ответах, восстановленных из хранилища ключей.
const ReplayedHeader = "Idempotent-Replayed"

const unmatchedRoute = "unmatched"

// observe пишет access-лог и HTTP-метрики. Ошибку обработчика он сразу
// отдаёт в HTTPErrorHandler, чтобы увидеть итоговый статус ответа.
func observe(logger *log.Entry, m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			elapsed := time.Since(started)

			route := c.Path()
			if route == "" {
				route = unmatchedRoute
			}
			status := c.Response().Status
			if m != nil {
				m.RecordRequest(c.Request().Method, route, status, elapsed)
			}

			entry := logger.WithFields(log.Fields{
				"method":      c.Request().Method,
				"route":       route,
				"status":      status,
				"duration_ms": elapsed.Milliseconds(),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("request completed")
			} else {
				entry.Debug("request completed")
			}
			return nil
		}
	}
}

// requestTimeout ограничивает время обработки запроса.
func requestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

type bodyRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// idempotent сохраняет ответ на запрос с Idempotency-Key и повторяет его
// при повторной отправке того же тела.
func idempotent(guard *idempotency.Guard, logger *log.Entry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(IdempotencyKeyHeader)
			if guard == nil || key == "" {
				return next(c)
			}

			req := c.Request()
			body, err := io.ReadAll(req.Body)
			if err != nil {
				var httpErr *echo.HTTPError
				if errors.As(err, &httpErr) {
					return err
				}
				return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			hash := idempotency.HashRequest(req.Method, c.Path(), body)
			decision, err := guard.Begin(req.Context(), key, hash)
			if err != nil {
				return err
			}
			if decision.Replay {
				c.Response().Header().Set(ReplayedHeader, "true")
				return c.JSONBlob(decision.HTTPStatus, decision.Body)
			}

			completeCtx := context.WithoutCancel(req.Context())
			complete := func(status int, payload []byte) {
				if err := guard.Complete(completeCtx, key, status, payload); err != nil {
					logger.WithError(err).WithField("idempotency_key", key).Error("failed to store idempotent response")
				}
			}
			// Паника обработчика уходит в Recover как 500, ключ при этом освобождается.
			defer func() {
				if p := recover(); p != nil {
					complete(http.StatusInternalServerError, nil)
					panic(p)
				}
			}()

			recorder := &bodyRecorder{ResponseWriter: c.Response().Writer}
			c.Response().Writer = recorder
			if err := next(c); err != nil {
				c.Error(err)
			}

			complete(c.Response().Status, recorder.body.Bytes())
			return nil
		}
	}
}
