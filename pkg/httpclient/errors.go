package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
)

// ParseResponseError consumes a non-2xx response and converts it into an error
// the caller can surface. It understands bodies shaped like {"error":"..."}
// and {"error":{"code","message"}}. The body is closed.
func ParseResponseError(resp *http.Response, downstream string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", downstream, resp.StatusCode, err)
	}
	msg := extractMessage(raw)
	qualified := fmt.Sprintf("%s: %s", downstream, msg)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(downstream, msg)
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case resp.StatusCode == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.ServiceUnavailable(qualified)
	default:
		return fmt.Errorf("%s returned status %d: %s", downstream, resp.StatusCode, msg)
	}
}

func extractMessage(raw []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &flat) == nil {
		if flat.Message != "" {
			return flat.Message
		}
		if flat.Error != "" {
			return flat.Error
		}
	}
	return string(raw)
}
