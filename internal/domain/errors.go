package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrTransport            = errors.New("transport error")
	ErrMalformedResponse    = errors.New("malformed response")

	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrValidation           = errors.New("validation failed")
	ErrBookingFinal         = errors.New("booking already confirmed or cancelled")
	ErrMutationRejected     = errors.New("mutation rejected by backend")
	ErrAssistantUnavailable = errors.New("assistant unavailable")
)

// HTTPError is a non-2xx answer from a remote backend.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error %d", e.Status)
	}
	return fmt.Sprintf("http error %d: %s", e.Status, e.Body)
}

// ValidationError lists offending fields by the rule they broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Diagnose names the likely cause of a fetch failure for the operator.
func Diagnose(err error) string {
	var he *HTTPError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfiguration):
		return "INVALID_URL: the endpoint is not a deployed Apps Script web app URL"
	case errors.As(err, &he):
		switch he.Status {
		case 404:
			return fmt.Sprintf("HTTP_ERROR_%d: wrong URL suffix, the web app URL must end in /exec", he.Status)
		case 401, 403:
			return fmt.Sprintf("HTTP_ERROR_%d: the web app is not deployed with access set to \"Anyone\"", he.Status)
		default:
			return fmt.Sprintf("HTTP_ERROR_%d: the backend script failed", he.Status)
		}
	case errors.Is(err, ErrTransport):
		return "CORS_OR_NETWORK_ERROR: the backend is unreachable; check the network or the web app deployment"
	case errors.Is(err, ErrMalformedResponse):
		return "MALFORMED_DATA: the backend returned JSON that is not an object"
	default:
		return "LOAD_FAILED: " + err.Error()
	}
}

// ValidateEndpoint rejects anything that isn't under the backend's URL
// prefix. Scheme and host are compared parsed; the port only when the
// prefix names one.
func ValidateEndpoint(endpoint, prefix string) error {
	endpoint = strings.TrimSpace(endpoint)
	bad := fmt.Errorf("%w: endpoint must start with %s", ErrInvalidConfiguration, prefix)
	if endpoint == "" {
		return bad
	}
	want, err := url.Parse(prefix)
	if err != nil || want.Host == "" {
		return fmt.Errorf("%w: bad endpoint prefix %q", ErrInvalidConfiguration, prefix)
	}
	got, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	switch {
	case !strings.EqualFold(got.Scheme, want.Scheme),
		!strings.EqualFold(got.Hostname(), want.Hostname()),
		want.Port() != "" && got.Port() != want.Port(),
		got.User != nil,
		!strings.HasPrefix(got.Path, want.Path):
		return bad
	}
	return nil
}
