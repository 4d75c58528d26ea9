package transitapi

// TransportError is a network, timeout or HTTP-status failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a well-formed response whose result is an error message
// rather than data.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}
