package odataengine

import (
	"net/http"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
)

// ProtocolVersion selects the OData dialect spoken with the service.
type ProtocolVersion int

const (
	V2 ProtocolVersion = 2
	V4 ProtocolVersion = 4
)

func (v ProtocolVersion) String() string {
	switch v {
	case V2:
		return "2.0"
	case V4:
		return "4.0"
	default:
		return "unknown"
	}
}

// Option defines a functional option for configuring a Service.
type Option func(*Service) error

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) error {
		if client == nil {
			return ErrNilHTTPClient
		}

		s.client = client

		return nil
	}
}

// WithProtocolVersion sets the OData protocol version, V2 by default.
func WithProtocolVersion(version ProtocolVersion) Option {
	return func(s *Service) error {
		if version != V2 && version != V4 {
			return ErrUnsupportedProtocolVersion
		}

		s.version = version

		return nil
	}
}

// WithHeader adds a header sent with every request, e.g. for authorization.
func WithHeader(key, value string) Option {
	return func(s *Service) error {
		s.headers.Add(key, value)
		return nil
	}
}

// WithLogger sets the logger for the Service.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: request URLs with execution timing (development use)
// Error level: failed requests and undecodable payloads.
func WithLogger(logger entitystore.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Service.
// Its records carry the request context, enabling trace correlation.
func WithContextualLogger(logger entitystore.ContextualLogger) Option {
	return func(s *Service) error {
		s.contextualLogger = logger
		return nil
	}
}
