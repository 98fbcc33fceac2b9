package v1

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const msgNonField = "non_field_errors"

// bindErrorFields turns a JSON binding error into the per-field map returned
// with "Datos inválidos". Raw decoder messages never reach clients.
func bindErrorFields(err error) map[string][]string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return map[string][]string{typeErr.Field: {"Invalid value."}}
	}
	return map[string][]string{msgNonField: {sanitizeValidationError(err)}}
}

// isEmptyBody reports a bind error caused by a missing request body.
func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}

// sanitizeValidationError returns a user-friendly message for binding errors.
func sanitizeValidationError(err error) string {
	if err == nil {
		return ""
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "JSON parse error"
	}
	msg := err.Error()
	// Raw decoder errors expose internal structure - return generic message
	if strings.Contains(msg, "json:") ||
		strings.Contains(msg, "cannot unmarshal") ||
		strings.Contains(msg, "bind") ||
		strings.Contains(msg, "Key:") {
		return "Invalid request"
	}
	if len(msg) < 100 && !strings.Contains(msg, "Error:") {
		return msg
	}
	return "Invalid request"
}
