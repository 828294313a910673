package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestAPIKeyRequired(t *testing.T) {
	testCases := []struct {
		name   string
		key    string
		header string
		status int
	}{
		{"disabled", "", "", fiber.StatusOK},
		{"missing", "secret", "", fiber.StatusUnauthorized},
		{"wrong", "secret", "nope", fiber.StatusUnauthorized},
		{"valid", "secret", "secret", fiber.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/tools", APIKeyRequired(tc.key), func(c *fiber.Ctx) error {
				return c.SendString("ok")
			})

			req := httptest.NewRequest("GET", "/tools", nil)
			if tc.header != "" {
				req.Header.Set("X-API-Key", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Errorf("Expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestInternalOnly(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", InternalOnly(), func(c *fiber.Ctx) error {
		return c.SendString("metrics")
	})

	testCases := []struct {
		realIP string
		status int
	}{
		{"10.1.2.3", fiber.StatusOK},
		{"192.168.0.10", fiber.StatusOK},
		{"203.0.113.7", fiber.StatusForbidden},
		{"not-an-ip", fiber.StatusForbidden},
	}

	for _, tc := range testCases {
		req := httptest.NewRequest("GET", "/metrics", nil)
		req.Header.Set("X-Real-IP", tc.realIP)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if resp.StatusCode != tc.status {
			t.Errorf("%s: expected %d, got %d", tc.realIP, tc.status, resp.StatusCode)
		}
	}
}

func TestPrometheusHandlerExposesHTTPMetrics(t *testing.T) {
	app := fiber.New()
	app.Use(PrometheusMiddleware())
	app.Get("/v1/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/metrics", PrometheusHandler())

	if _, err := app.Test(httptest.NewRequest("GET", "/v1/ping", nil)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `address_finder_http_requests_total{method="GET",path="/v1/ping",status="200"}`) {
		t.Errorf("Expected the ping request to be counted")
	}
}
