package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/CrystalRanch/Payout-Backend/services/monitoring/logging"
)

const (
	Ledger   = "LEDGER"
	Telegram = "TELEGRAM"
)

// BaseProvider contains common fields and methods
type BaseProvider struct {
	Name    string
	BaseURL string
	APIKey  string
	Client  *http.Client
	Logger  *logging.Logger
}

// Request Processing
func (p *BaseProvider) MakeRequest(ctx context.Context, method, url string, body interface{}, extraHeaders map[string]string) (*http.Response, error) {

	var req *http.Request
	var err error

	if p.Logger != nil {
		requestLog := struct {
			Method string
			URL    string
		}{
			Method: method,
			URL:    url,
		}
		p.Logger.Info("External Request", requestLog)
	}

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req, err = http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(jsonBody))
		if err != nil {
			return nil, err
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}

	if err != nil {
		return nil, err
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	// Allows for overwriting pre-set keys
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	// Make the request
	return p.Client.Do(req)
}
