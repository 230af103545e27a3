package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the AgriLink identity service.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new identity service client with a bounded request
// timeout. Callers needing different transport behaviour can replace
// HTTPClient before first use.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}
