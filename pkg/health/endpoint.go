package health

import (
	"fmt"
	"net/http"
	"time"
)

// EndpointChecker probes an HTTP endpoint, typically the notification
// webhook. Reachability is what matters here, not semantics, so the
// default status range is generous: many webhook receivers answer a
// bare GET with 404 or 405 while still being perfectly alive.
type EndpointChecker struct {
	// CheckName is the subsystem name reported for this endpoint
	CheckName string

	// URL is the full HTTP URL to probe
	URL string

	// Method is the HTTP method to use (default: GET)
	Method string

	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 499)
	ExpectedStatusMax int

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewEndpointChecker creates an endpoint checker with defaults.
func NewEndpointChecker(name, url string) *EndpointChecker {
	return &EndpointChecker{
		CheckName:         name,
		URL:               url,
		Method:            "GET",
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 499,
		Client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Name returns the subsystem name.
func (c *EndpointChecker) Name() string {
	return c.CheckName
}

// Check performs the probe.
func (c *EndpointChecker) Check() error {
	req, err := http.NewRequest(c.Method, c.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < c.ExpectedStatusMin || resp.StatusCode > c.ExpectedStatusMax {
		return fmt.Errorf("HTTP %d %s (expected %d-%d)",
			resp.StatusCode, http.StatusText(resp.StatusCode),
			c.ExpectedStatusMin, c.ExpectedStatusMax)
	}
	return nil
}

// WithStatusRange sets the expected status code range.
func (c *EndpointChecker) WithStatusRange(min, max int) *EndpointChecker {
	c.ExpectedStatusMin = min
	c.ExpectedStatusMax = max
	return c
}

// WithTimeout sets the HTTP client timeout.
func (c *EndpointChecker) WithTimeout(timeout time.Duration) *EndpointChecker {
	c.Client.Timeout = timeout
	return c
}
