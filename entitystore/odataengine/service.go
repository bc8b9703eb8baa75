package odataengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/tracking"
)

var (
	ErrEmptyBaseURL               = errors.New("odata service base url must not be empty")
	ErrInvalidBaseURL             = errors.New("odata service base url is invalid")
	ErrNilHTTPClient              = errors.New("http client must not be nil")
	ErrUnsupportedProtocolVersion = errors.New("unsupported odata protocol version")
	ErrEmptyEntitySetName         = errors.New("entity set name must not be empty")
	ErrUnknownEntitySet           = errors.New("entity type is not served by an entity set of this service")
	ErrRequestFailed              = errors.New("odata request failed")
	ErrDecodingPayloadFailed      = errors.New("decoding odata payload failed")
	ErrEncodingPayloadFailed      = errors.New("encoding odata payload failed")
)

const (
	logMsgRequestExecuted = "executed odata request: "
	logMsgRequestFailed   = "odata request failed"
	logMsgDecodeFailed    = "failed to decode odata payload"
	logMsgCloseBodyFailed = "failed to close response body"
	logAttrError          = "error"
	logAttrURL            = "url"
	logAttrStatus         = "status"
	logAttrDurationMS     = "duration_ms"
	logAttrAttempt        = "attempt"
	logAttrDelayMS        = "delay_ms"
	logMsgRetrying        = "retrying odata request: "

	headerAccept            = "Accept"
	headerContentType       = "Content-Type"
	headerDataServiceVer    = "DataServiceVersion"
	headerMaxDataServiceVer = "MaxDataServiceVersion"
	headerODataVersion      = "OData-Version"
	headerODataMaxVersion   = "OData-MaxVersion"

	mediaTypeJSON        = "application/json"
	mediaTypeVerboseJSON = "application/json;odata=verbose"

	methodMerge = "MERGE"

	maxErrorBodyExcerpt = 512
)

// Service is a client for one OData service root. Entity sets created by the same Service share its
// entity context, so changes to any of them are saved together.
type Service struct {
	baseURL          string
	client           *http.Client
	version          ProtocolVersion
	headers          http.Header
	retry            retryPolicy
	logger           entitystore.Logger
	contextualLogger entitystore.ContextualLogger
	context          *tracking.Context

	mu   sync.RWMutex
	sets map[string]entitystore.ElementType
}

// NewService creates a Service for the OData service root at baseURL with optional configuration.
func NewService(baseURL string, options ...Option) (*Service, error) {
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Join(ErrInvalidBaseURL, err)
	}

	s := &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
		version: V2,
		headers: make(http.Header),
		retry:   defaultRetryPolicy(),
		sets:    make(map[string]entitystore.ElementType),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	s.context = tracking.NewContext(persister{service: s})

	return s, nil
}

// Version returns the OData protocol version the Service speaks.
func (s *Service) Version() ProtocolVersion {
	return s.version
}

// Context returns the entity context shared by all entity sets of the Service.
func (s *Service) Context() *tracking.Context {
	return s.context
}

// EntitySet returns the entity set with the given name and key properties.
// The set name doubles as the entity type name of its entities.
func (s *Service) EntitySet(name string, keys ...string) (*EntitySet, error) {
	if name == "" {
		return nil, ErrEmptyEntitySetName
	}

	elementType := entitystore.ElementType{Name: name, KeyProperties: append([]string(nil), keys...)}

	s.mu.Lock()
	s.sets[name] = elementType
	s.mu.Unlock()

	return &EntitySet{
		Queryable:   Queryable{service: s, set: name},
		elementType: elementType,
	}, nil
}

func (s *Service) elementType(typeName string) (entitystore.ElementType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elementType, ok := s.sets[typeName]
	if !ok {
		return entitystore.ElementType{}, fmt.Errorf("%w: %s", ErrUnknownEntitySet, typeName)
	}

	return elementType, nil
}

// resourceURL returns the URL of an entity set or of a single entity when keyLiteral is not empty.
func (s *Service) resourceURL(set, keyLiteral, rawQuery string) string {
	resource := s.baseURL + "/" + set
	if keyLiteral != "" {
		resource += "(" + keyLiteral + ")"
	}

	if rawQuery != "" {
		resource += "?" + rawQuery
	}

	return resource
}

// do executes a request and returns the response body of a successful response.
// Reads failing with a transient error are retried according to the retry policy of the Service.
func (s *Service) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var (
		responseBody []byte
		status       int
		err          error
	)

	for attempt := 0; attempt < s.retry.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.retry.backoff(attempt)
			s.logRetry(ctx, method, target, attempt, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, errors.Join(ErrRequestFailed, ctx.Err())
			}
		}

		responseBody, status, err = s.attempt(ctx, method, target, payload)
		if err == nil || !isRetryable(method, status, err) {
			break
		}
	}

	return responseBody, err
}

// attempt executes one request. The status is zero if no response was received.
func (s *Service) attempt(ctx context.Context, method, target string, payload []byte) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, 0, errors.Join(ErrRequestFailed, err)
	}

	s.setHeaders(request, payload != nil)

	start := time.Now()
	response, err := s.client.Do(request)
	duration := time.Since(start)

	if err != nil {
		s.logError(ctx, logMsgRequestFailed, logAttrError, err.Error(), logAttrURL, target)
		return nil, 0, errors.Join(ErrRequestFailed, err)
	}
	defer s.closeBody(ctx, response.Body)

	s.logRequest(ctx, method, target, response.StatusCode, duration)

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, response.StatusCode, errors.Join(ErrRequestFailed, err)
	}

	if response.StatusCode >= http.StatusBadRequest {
		s.logError(ctx, logMsgRequestFailed, logAttrURL, target, logAttrStatus, response.StatusCode)

		return nil, response.StatusCode, errors.Join(
			ErrRequestFailed,
			fmt.Errorf("%s %s: status %d: %s", method, target, response.StatusCode, excerpt(responseBody)),
		)
	}

	return responseBody, response.StatusCode, nil
}

func (s *Service) setHeaders(request *http.Request, hasPayload bool) {
	switch s.version {
	case V4:
		request.Header.Set(headerAccept, mediaTypeJSON)
		request.Header.Set(headerODataVersion, V4.String())
		request.Header.Set(headerODataMaxVersion, V4.String())
	default:
		request.Header.Set(headerAccept, mediaTypeVerboseJSON)
		request.Header.Set(headerDataServiceVer, V2.String())
		request.Header.Set(headerMaxDataServiceVer, V2.String())
	}

	if hasPayload {
		request.Header.Set(headerContentType, mediaTypeJSON)
	}

	for key, values := range s.headers {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
}

func (s *Service) closeBody(ctx context.Context, body io.Closer) {
	if err := body.Close(); err != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCloseBodyFailed, logAttrError, err.Error())
		}

		if s.contextualLogger != nil {
			s.contextualLogger.WarnContext(ctx, logMsgCloseBodyFailed, logAttrError, err.Error())
		}
	}
}

// logRequest logs executed requests with their duration at debug level.
func (s *Service) logRequest(ctx context.Context, method, target string, status int, duration time.Duration) {
	args := []any{logAttrURL, target, logAttrStatus, status, logAttrDurationMS, durationToMilliseconds(duration)}

	if s.logger != nil {
		s.logger.Debug(logMsgRequestExecuted+method, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgRequestExecuted+method, args...)
	}
}

func (s *Service) logRetry(ctx context.Context, method, target string, attempt int, delay time.Duration) {
	args := []any{logAttrURL, target, logAttrAttempt, attempt, logAttrDelayMS, durationToMilliseconds(delay)}

	if s.logger != nil {
		s.logger.Warn(logMsgRetrying+method, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, logMsgRetrying+method, args...)
	}
}

func (s *Service) logError(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyExcerpt {
		return text[:maxErrorBodyExcerpt] + "..."
	}

	return text
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
