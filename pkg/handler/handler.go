package handler

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

func opError(svc types.Service, op string, err error) error {
	return &types.ServiceOperationError{Service: svc, Operation: op, Err: err}
}

func invalidInput(svc types.Service, op, msg string, options ...goerr.Option) error {
	return opError(svc, op, goerr.Wrap(types.ErrInvalidOption, msg, options...))
}
