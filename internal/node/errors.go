package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/googleapis/gax-go/v2/apierror"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pubsubnode/internal/credential"
	"pubsubnode/internal/service"
)

// Name is the node name attached to every error raised by the connector.
const Name = "Google Cloud Pub/Sub"

// ConfigError is a problem with what the workflow asked for. Retrying it
// without changing the workflow cannot succeed.
type ConfigError struct {
	Node    string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Node: Name, Message: fmt.Sprintf(format, args...)}
}

// APIError is a transport or authentication failure reported by Google.
// Status is an HTTP status code, or 0 when none could be derived.
type APIError struct {
	Node    string
	Status  int
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// classify tags err with the node name. Errors that are neither transport nor
// authentication failures are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var cfgErr *ConfigError
	var apiErr *APIError
	if errors.As(err, &cfgErr) || errors.As(err, &apiErr) {
		return err
	}

	if errors.Is(err, credential.ErrMissingCredentials) ||
		errors.Is(err, service.ErrInvalidMaxMessages) ||
		errors.Is(err, service.ErrInvalidTimeout) {
		return &ConfigError{Node: Name, Message: err.Error()}
	}
	// Unparseable key material is an authentication failure as far as the
	// workflow is concerned.
	if errors.Is(err, credential.ErrMalformedKey) {
		return &APIError{Node: Name, Status: http.StatusUnauthorized, Message: err.Error(), Cause: err}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := http.StatusUnauthorized
		if retrieveErr.Response != nil {
			code = retrieveErr.Response.StatusCode
		}
		msg := retrieveErr.ErrorDescription
		if msg == "" {
			msg = retrieveErr.ErrorCode
		}
		if msg == "" {
			msg = "failed to obtain an access token"
		}
		return &APIError{Node: Name, Status: code, Message: msg, Cause: err}
	}

	if ae, ok := apierror.FromError(err); ok {
		code := ae.HTTPCode()
		if code <= 0 {
			code = httpStatus(ae.GRPCStatus().Code())
		}
		msg := err.Error()
		if st := ae.GRPCStatus(); st != nil && st.Message() != "" {
			msg = st.Message()
		}
		return &APIError{Node: Name, Status: code, Message: msg, Cause: err}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		return &APIError{Node: Name, Status: httpStatus(st.Code()), Message: st.Message(), Cause: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Node: Name, Status: http.StatusGatewayTimeout, Message: err.Error(), Cause: err}
	}
	return err
}

// httpStatus follows the mapping in google/rpc/code.proto.
func httpStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return 499
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
