package telemetry

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const spanLocalsKey = "otel-span"

// Config holds the configuration for the tracing middleware
type Config struct {
	ServiceName string
	Skip        func(*fiber.Ctx) bool
}

func skipHealthRoutes(c *fiber.Ctx) bool {
	p := c.Path()
	return p == "/healthz" || p == "/metrics" || strings.HasSuffix(p, "/liveness") || strings.HasSuffix(p, "/readiness")
}

// New returns a tracing middleware for Fiber. Spans are named after the
// route template ("POST /v1/sessions/:id/select") and carry the session id
// when the route has one.
func New(config ...Config) fiber.Handler {
	cfg := Config{ServiceName: ServiceName, Skip: skipHealthRoutes}
	if len(config) > 0 {
		if config[0].ServiceName != "" {
			cfg.ServiceName = config[0].ServiceName
		}
		if config[0].Skip != nil {
			cfg.Skip = config[0].Skip
		}
	}
	tr := otel.GetTracerProvider().Tracer(cfg.ServiceName)

	return func(c *fiber.Ctx) error {
		if cfg.Skip(c) {
			return c.Next()
		}

		start := time.Now()
		method := c.Method()

		if HTTPActiveRequests != nil {
			active := metric.WithAttributes(attribute.String("method", method))
			HTTPActiveRequests.Add(c.Context(), 1, active)
			defer HTTPActiveRequests.Add(c.Context(), -1, active)
		}

		// upstream (voice agent) trace context
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := tr.Start(ctx, method+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethodKey.String(method),
				semconv.HTTPTargetKey.String(c.OriginalURL()),
				semconv.HTTPUserAgentKey.String(string(c.Request().Header.UserAgent())),
			),
		)
		defer span.End()

		c.Locals(spanLocalsKey, span)
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		if route == "" || route == "/" {
			route = c.Path()
		}
		span.SetName(method + " " + route)
		span.SetAttributes(semconv.HTTPRouteKey.String(route))
		if id := c.Params("id"); id != "" {
			span.SetAttributes(attribute.String("session.id", id))
		}

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
		if err != nil {
			span.RecordError(err)
		}
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}

		if HTTPRequestsTotal != nil {
			attrs := metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("route", route),
				attribute.String("status", strconv.Itoa(status)),
			)
			HTTPRequestsTotal.Add(c.Context(), 1, attrs)
			HTTPRequestDuration.Record(c.Context(), time.Since(start).Seconds(), attrs)
		}
		return err
	}
}

// SpanFromContext gets the current span from fiber context
func SpanFromContext(c *fiber.Ctx) trace.Span {
	span, ok := c.Locals(spanLocalsKey).(trace.Span)
	if !ok {
		return nil
	}
	return span
}
