package apierr

import (
	"errors"
	"net/http"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsNotFound reports whether err is a NotFound response of either REST or gRPC APIs
func IsNotFound(err error) bool {
	return hasCode(err, http.StatusNotFound, codes.NotFound)
}

// IsAlreadyExists reports whether err is a conflict response of either REST or gRPC APIs
func IsAlreadyExists(err error) bool {
	return hasCode(err, http.StatusConflict, codes.AlreadyExists)
}

func hasCode(err error, httpCode int, grpcCode codes.Code) bool {
	if err == nil {
		return false
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == httpCode {
		return true
	}

	if apiErr, ok := apierror.FromError(err); ok {
		if apiErr.HTTPCode() == httpCode {
			return true
		}
		if s := apiErr.GRPCStatus(); s != nil && s.Code() == grpcCode {
			return true
		}
	}

	if s, ok := status.FromError(err); ok && s.Code() == grpcCode {
		return true
	}

	return false
}
