package site

import (
	apperrors "github.com/yanqian/chargemap/pkg/errors"
)

// Error codes shared by repositories, the engine and the transport layer.
const (
	CodeNetwork         = "network_error"
	CodeDecode          = "decode_error"
	CodeNotFound        = "not_found"
	CodeInvalidMetric   = "invalid_metric"
	CodeInvalidArgument = "invalid_argument"
)

// NetworkError reports a transport failure or a non-2xx upstream response.
func NetworkError(message string, err error) error {
	return apperrors.Wrap(CodeNetwork, message, err)
}

// DecodeError reports a malformed upstream payload.
func DecodeError(message string, err error) error {
	return apperrors.Wrap(CodeDecode, message, err)
}

// NotFoundError reports an unknown city or site id.
func NotFoundError(message string) error {
	return apperrors.New(CodeNotFound, message)
}

// InvalidMetricError reports a metric key outside the closed metric set.
func InvalidMetricError(key string) error {
	return apperrors.New(CodeInvalidMetric, "unknown metric "+quote(key))
}

// InvalidArgumentError reports a caller contract violation.
func InvalidArgumentError(message string) error {
	return apperrors.New(CodeInvalidArgument, message)
}

func IsNetwork(err error) bool         { return apperrors.IsCode(err, CodeNetwork) }
func IsDecode(err error) bool          { return apperrors.IsCode(err, CodeDecode) }
func IsNotFound(err error) bool        { return apperrors.IsCode(err, CodeNotFound) }
func IsInvalidMetric(err error) bool   { return apperrors.IsCode(err, CodeInvalidMetric) }
func IsInvalidArgument(err error) bool { return apperrors.IsCode(err, CodeInvalidArgument) }

func quote(s string) string {
	return "\"" + s + "\""
}
