package provider

import "fmt"

// ErrorKind classifies upstream failures by how the caller should present
// them. None of them is retried automatically.
type ErrorKind string

const (
	KindAuth   ErrorKind = "auth"
	KindClient ErrorKind = "client"
	KindServer ErrorKind = "server"
)

// StatusError is a non-2xx response from the provider, carrying the HTTP
// status and whatever error body could be read.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Kind() ErrorKind {
	switch {
	case e.StatusCode == 401:
		return KindAuth
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return KindClient
	default:
		return KindServer
	}
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Detail)
}

// ProtocolError is a 2xx response whose payload is neither a record array
// nor one of the provider's known no-data shapes.
type ProtocolError struct {
	Payload string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("provider payload is not a record array: %q", e.Payload)
}

// MalformedRecordError aborts pagination when a full page has no record
// with a parseable timestamp, since the window can no longer advance.
type MalformedRecordError struct {
	Page int
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("page %d is full but no record has a parseable datahora, cannot advance window", e.Page)
}
