package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinigo/clinic-platform/shared/middleware"
	"github.com/clinigo/clinic-platform/shared/utils"
)

// ServiceClient forwards requests to a backing service, carrying the
// resolved clinic identity as explicit headers
type ServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewServiceClient creates a new service client
func NewServiceClient(baseURL string) *ServiceClient {
	return &ServiceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ProxyRequest forwards the request to the backing service. The clinic
// context set by the tenant guard travels in X-Clinic-* headers; nothing
// is written to process-global state.
func (sc *ServiceClient) ProxyRequest(c *gin.Context) {
	targetURL := sc.baseURL + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	var body io.Reader
	if c.Request.Body != nil {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to read request body")
			return
		}
		body = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, body)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to create request")
		return
	}

	for key, values := range c.Request.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Host = c.Request.Host

	if tc, ok := middleware.GetClinicContext(c); ok {
		req.Header.Set("X-Clinic-ID", tc.ClinicID.String())
		req.Header.Set("X-Clinic-Subdomain", tc.Subdomain)
		req.Header.Set("X-Clinic-Database", tc.DatabaseName)
		req.Header.Set("X-Clinic-Mode", string(tc.Mode))
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		utils.ServiceUnavailableResponse(c, "Failed to communicate with service")
		return
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to read response")
		return
	}

	for key, values := range resp.Header {
		for _, value := range values {
			c.Header(key, value)
		}
	}

	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), responseBody)
}

// HealthCheck checks if the backing service is healthy
func (sc *ServiceClient) HealthCheck() error {
	req, err := http.NewRequest(http.MethodGet, sc.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}

	return nil
}
