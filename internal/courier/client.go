package courier

// Package courier wraps the courier tracking API (PostEx-compatible guest
// endpoint). The API reports its own status code inside the JSON body; a
// transport-level 200 can still carry an upstream failure.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/orderhubapp/orderhub/internal/apperr"
)

type TrackingEvent struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Time    string `json:"time"`
}

type TrackingInfo struct {
	CustomerName   string          `json:"customer_name"`
	TrackingNumber string          `json:"tracking_number"`
	PickupDate     string          `json:"pickup_date"`
	StatusEvents   []TrackingEvent `json:"status_events"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a tracking client. httpClient must carry a bounded
// timeout; an unbounded client would let a stalled courier API hang requests.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type trackingResponse struct {
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	Dist          struct {
		CustomerName             string `json:"customerName"`
		TrackingNumber           string `json:"trackingNumber"`
		OrderPickupDate          string `json:"orderPickupDate"`
		TransactionStatusHistory []struct {
			TransactionStatusMessage     string `json:"transactionStatusMessage"`
			TransactionStatusMessageCode string `json:"transactionStatusMessageCode"`
			ModifiedDatetime             string `json:"modifiedDatetime"`
		} `json:"transactionStatusHistory"`
	} `json:"dist"`
}

func (c *Client) Track(ctx context.Context, trackingNumber string) (*TrackingInfo, error) {
	endpoint := fmt.Sprintf("%s/guest/get-order/%s", c.baseURL, url.PathEscape(trackingNumber))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tracking request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to fetch tracking info from courier API")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(fmt.Errorf("http status %d", resp.StatusCode), "failed to fetch tracking info from courier API")
	}

	var body trackingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.Upstream(err, "failed to decode courier API response")
	}

	if body.StatusCode != "200" {
		return nil, apperr.Upstream(nil, "courier API error: %s", body.StatusMessage)
	}

	info := &TrackingInfo{
		CustomerName:   body.Dist.CustomerName,
		TrackingNumber: body.Dist.TrackingNumber,
		PickupDate:     body.Dist.OrderPickupDate,
	}
	for _, event := range body.Dist.TransactionStatusHistory {
		info.StatusEvents = append(info.StatusEvents, TrackingEvent{
			Message: event.TransactionStatusMessage,
			Code:    event.TransactionStatusMessageCode,
			Time:    event.ModifiedDatetime,
		})
	}
	return info, nil
}
