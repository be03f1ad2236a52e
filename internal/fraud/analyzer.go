package fraud

// Package fraud implements the order-time fraud check: cheap format checks
// first, then an address geocoding lookup. A flagged order is still created;
// the flag and reason travel with it for later review.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/orderhubapp/orderhub/internal/apperr"
)

var (
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)
)

type Result struct {
	IsFraud bool
	Reason  string
}

type Input struct {
	Address string
	Email   string
	Phone   string
}

type Analyzer struct {
	geocodeURL string
	apiKey     string
	httpClient *http.Client
}

const defaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// NewAnalyzer builds an analyzer. With an empty apiKey the address lookup is
// skipped and only the format checks run.
func NewAnalyzer(apiKey string, httpClient *http.Client) *Analyzer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Analyzer{
		geocodeURL: defaultGeocodeURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// WithGeocodeURL overrides the geocoding endpoint, for tests.
func (a *Analyzer) WithGeocodeURL(geocodeURL string) *Analyzer {
	a.geocodeURL = geocodeURL
	return a
}

func (a *Analyzer) Analyze(ctx context.Context, input Input) (*Result, error) {
	if !emailPattern.MatchString(input.Email) {
		return &Result{IsFraud: true, Reason: "Invalid email format"}, nil
	}
	if !phonePattern.MatchString(input.Phone) {
		return &Result{IsFraud: true, Reason: "Invalid phone number"}, nil
	}

	if a.apiKey == "" {
		return &Result{}, nil
	}

	valid, err := a.geocodeAddress(ctx, input.Address)
	if err != nil {
		return nil, err
	}
	if !valid {
		return &Result{IsFraud: true, Reason: "Invalid address"}, nil
	}
	return &Result{}, nil
}

func (a *Analyzer) geocodeAddress(ctx context.Context, address string) (bool, error) {
	endpoint := fmt.Sprintf("%s?address=%s&key=%s", a.geocodeURL, url.QueryEscape(address), url.QueryEscape(a.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build geocode request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false, apperr.Upstream(err, "failed to reach geocoding service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, apperr.Upstream(fmt.Errorf("http status %d", resp.StatusCode), "geocoding service error")
	}

	var body struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, apperr.Upstream(err, "failed to decode geocoding response")
	}

	return len(body.Results) > 0, nil
}
