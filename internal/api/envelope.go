package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/DokushoHQ/backends/internal/http/response"
)

// EnvelopeVersion is the envelope format version.
const EnvelopeVersion = response.Version

// APIEnvelope wraps successful and plain error bodies.
type APIEnvelope = response.Envelope

// APIErrorEnvelope wraps APIError bodies.
type APIErrorEnvelope = response.ErrorEnvelope

// EnvelopeTransformer wraps every huma response body in the API envelope.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	var apiErr *APIError
	if err, ok := v.(error); ok && errors.As(err, &apiErr) {
		return APIErrorEnvelope{
			Version: EnvelopeVersion,
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		}, nil
	}
	if err, ok := v.(error); ok {
		return APIEnvelope{Version: EnvelopeVersion, Error: err.Error()}, nil
	}
	return APIEnvelope{
		Version: EnvelopeVersion,
		Success: len(status) > 0 && status[0] == '2',
		Data:    v,
	}, nil
}
