package mcp

import "errors"

func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsTimeout reports whether err is a bounded-wait expiry. Such failures are
// the sanctioned signal for caller-side retry loops.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

func IsProtocolError(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e)
}

func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsRPCError(err error) bool {
	var e *RPCError
	return errors.As(err, &e)
}

func IsHTTPStatusError(err error) bool {
	var e *HTTPStatusError
	return errors.As(err, &e)
}

func IsAuthError(err error) bool {
	var e *HTTPStatusError
	return errors.As(err, &e) && (e.StatusCode == 401 || e.StatusCode == 403)
}

func IsServerError(err error) bool {
	var e *HTTPStatusError
	return errors.As(err, &e) && e.StatusCode >= 500 && e.StatusCode <= 599
}
