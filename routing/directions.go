package routing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"finnsync/models"

	"github.com/go-resty/resty/v2"
)

const DefaultDirectionsURL = "https://maps.googleapis.com/maps/api/directions/json"

var ErrNoAPIKey = errors.New("routing: no api key configured")

// Request is one (origin, destination, mode, departure) routing query.
type Request struct {
	Origin        string
	Destination   string
	Mode          models.TravelMode
	DepartureTime time.Time
}

// StatusError is returned when the provider answers with a status other
// than OK or ZERO_RESULTS.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("directions status %s: %s", e.Status, e.Message)
	}
	return "directions status " + e.Status
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []struct {
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

type DirectionsClient struct {
	client  *resty.Client
	apiKey  string
	baseURL string
}

// NewDirectionsClient wraps client for the Directions API. An empty baseURL
// selects the public endpoint.
func NewDirectionsClient(client *resty.Client, apiKey, baseURL string) *DirectionsClient {
	if baseURL == "" {
		baseURL = DefaultDirectionsURL
	}
	return &DirectionsClient{client: client, apiKey: apiKey, baseURL: baseURL}
}

// Duration returns the travel time in whole minutes. ok is false when the
// provider found no route, which is not an error.
func (c *DirectionsClient) Duration(ctx context.Context, req Request) (minutes int, ok bool, err error) {
	if c.apiKey == "" {
		return 0, false, ErrNoAPIKey
	}

	params := map[string]string{
		"origin":      req.Origin,
		"destination": req.Destination,
		"mode":        string(req.Mode),
		"key":         c.apiKey,
	}
	if !req.DepartureTime.IsZero() {
		params["departure_time"] = strconv.FormatInt(req.DepartureTime.Unix(), 10)
	}

	var body directionsResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&body).
		Get(c.baseURL)
	if err != nil {
		return 0, false, fmt.Errorf("directions request: %w", err)
	}
	if res.IsError() {
		return 0, false, fmt.Errorf("directions request: http %d", res.StatusCode())
	}

	switch body.Status {
	case "OK":
		if len(body.Routes) == 0 || len(body.Routes[0].Legs) == 0 {
			return 0, false, nil
		}
		return body.Routes[0].Legs[0].Duration.Value / 60, true, nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return 0, false, nil
	default:
		return 0, false, &StatusError{Status: body.Status, Message: body.ErrorMessage}
	}
}
