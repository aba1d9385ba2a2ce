package maps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gmaps "googlemaps.github.io/maps"

	"github.com/localmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
	"github.com/localmarket/marketplace-backend/pkg/geo"
)

const defaultTimeout = 10 * time.Second

var (
	errAPIKeyRequired = errors.New("google maps api key is required")
	errNoRoute        = errors.New("no route found")
)

// TravelMode is the routing profile used for a lookup.
type TravelMode string

const (
	TravelModeDriving   TravelMode = "driving"
	TravelModeBicycling TravelMode = "bicycling"
	TravelModeWalking   TravelMode = "walking"
)

// ModeFor maps a courier's declared vehicle onto a routing profile.
func ModeFor(mode enums.TransportMode) TravelMode {
	switch mode {
	case enums.TransportModeBicycle, enums.TransportModeEBike:
		return TravelModeBicycling
	case enums.TransportModeWalking:
		return TravelModeWalking
	default:
		return TravelModeDriving
	}
}

// Client wraps the Google Directions API for road-network distances.
type Client struct {
	directions *gmaps.Client
	timeout    time.Duration
}

type settings struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// Option configures optional client behavior.
type Option func(*settings)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithBaseURL points the client at a different Maps host.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

// WithTimeout bounds each lookup.
func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewClient builds the Google Maps client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	s := settings{timeout: defaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	clientOpts := []gmaps.ClientOption{gmaps.WithAPIKey(trimmedKey)}
	if s.httpClient != nil {
		clientOpts = append(clientOpts, gmaps.WithHTTPClient(s.httpClient))
	}
	if s.baseURL != "" {
		clientOpts = append(clientOpts, gmaps.WithBaseURL(s.baseURL))
	}

	directions, err := gmaps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &Client{directions: directions, timeout: s.timeout}, nil
}

// Distance returns the road-network distance in kilometers of the first
// route leg between origin and destination.
func (c *Client) Distance(ctx context.Context, origin, destination geo.Point, mode TravelMode) (float64, error) {
	if c == nil || c.directions == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	if mode == "" {
		mode = TravelModeDriving
	}

	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	routes, _, err := c.directions.Directions(lookupCtx, &gmaps.DirectionsRequest{
		Origin:      origin.String(),
		Destination: destination.String(),
		Mode:        gmaps.Mode(mode),
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "directions request failed")
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, errNoRoute, "directions request returned no legs")
	}

	leg := routes[0].Legs[0]
	return float64(leg.Distance.Meters) / 1000, nil
}
