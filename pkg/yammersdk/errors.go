package yammersdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoAuthorizationCode is returned when a token is needed but the client has
	// neither a token nor an authorization code to exchange.
	ErrNoAuthorizationCode = errors.New("yammer: no authorization code configured")

	// ErrNoAccessToken is returned when the token exchange completed but did not
	// yield an access token.
	ErrNoAccessToken = errors.New("yammer: token exchange returned no access token")

	// ErrGrantUnavailable is returned when no impersonation grant exists for a user
	// and one could not be created. Creating grants requires verified admin rights
	// on the provider side, so this is an expected outcome rather than a fault.
	ErrGrantUnavailable = errors.New("yammer: no impersonation grant available")

	// ErrTooFewTopics is returned by NewTopicsMessage when fewer than
	// MinTopicsMessageTopics topics are supplied.
	ErrTooFewTopics = errors.New("yammer: topics message needs at least 3 topics")

	// ErrTooManyTopics is returned when more topics are supplied than the provider accepts.
	ErrTooManyTopics = errors.New("yammer: too many topics")

	// ErrEmptyEmail is returned by operations keyed by an email address.
	ErrEmptyEmail = errors.New("yammer: email address is required")

	// ErrInvalidRequest wraps request validation and payload encoding failures. It is
	// returned regardless of DecodeMode.
	ErrInvalidRequest = errors.New("yammer: invalid request")
)

// APIError is returned in strict mode when the provider answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Resource   string

	// Message is the provider's error message when one could be extracted.
	Message string

	// Body is the raw response body, truncated.
	Body string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("yammer: %s returned %d: %s", e.Resource, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("yammer: %s returned %d %s", e.Resource, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsAPIError reports whether err is an *APIError and returns its status code.
func IsAPIError(err error) (bool, int) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true, apiErr.StatusCode
	}
	return false, 0
}

// DecodeError is returned in strict mode when a 2xx response body could not be
// decoded into the requested type.
type DecodeError struct {
	Resource string
	Body     string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("yammer: decode %s: %v", e.Resource, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// providerError covers the two error envelopes the provider uses: the REST API's
// {"response":{...}} and the OAuth endpoint's {"error":..,"error_description":..}.
type providerError struct {
	Response struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
		Stat    string `json:"stat"`
	} `json:"response"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// parseAPIError builds an *APIError for a non-2xx response.
func parseAPIError(resource string, statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Resource:   resource,
		Body:       truncateBody(body),
	}

	var pe providerError
	if err := json.Unmarshal(body, &pe); err == nil {
		switch {
		case pe.Response.Message != "":
			apiErr.Message = pe.Response.Message
		case pe.ErrorDescription != "":
			apiErr.Message = pe.Error + ": " + pe.ErrorDescription
		case pe.Error != "":
			apiErr.Message = pe.Error
		}
	}

	return apiErr
}

// maxLoggedBody bounds raw bodies kept on errors and in log records.
const maxLoggedBody = 2048

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody] + "...(truncated)"
	}
	return s
}
