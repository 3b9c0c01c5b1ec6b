package types

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// Configuration error
	ErrInvalidOption = goerr.New("invalid option")
	ErrNoCredentials = goerr.New("no credentials found")

	// Runtime error
	ErrNotFound      = goerr.New("resource not found")
	ErrAlreadyExists = goerr.New("resource already exists")

	// Assertion error
	ErrAssertion = goerr.New("assertion error")
)

// CredentialsError is returned when no credential source of a service yields usable service account credentials.
type CredentialsError struct {
	Service  Service
	Attempts []string
	Err      error
}

func (x *CredentialsError) Error() string {
	msg := fmt.Sprintf("credentials for %s are not available", x.Service)
	if len(x.Attempts) > 0 {
		msg += " (tried " + strings.Join(x.Attempts, ", ") + ")"
	}
	if x.Err != nil {
		msg += ": " + x.Err.Error()
	}
	return msg
}

func (x *CredentialsError) Unwrap() error { return x.Err }

// ServiceInitError is returned when the vendor SDK rejects credentials while building a client.
type ServiceInitError struct {
	Service Service
	Err     error
}

func (x *ServiceInitError) Error() string {
	return fmt.Sprintf("failed to initialize %s client: %v", x.Service, x.Err)
}

func (x *ServiceInitError) Unwrap() error { return x.Err }

// ServiceOperationError wraps a failure of a delegated call. Err is the cause as returned by the SDK (possibly wrapped by goerr with values).
type ServiceOperationError struct {
	Service   Service
	Operation string
	Err       error
}

func (x *ServiceOperationError) Error() string {
	return fmt.Sprintf("%s.%s failed: %v", x.Service, x.Operation, x.Err)
}

func (x *ServiceOperationError) Unwrap() error { return x.Err }
