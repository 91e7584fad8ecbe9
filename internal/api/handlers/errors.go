package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// EncodeJSON marshals v without HTML escaping so URLs keep their & characters
func EncodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes v as a JSON response with the given status.
// An encoding failure becomes a 500 with a static body.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) error {
	body, err := EncodeJSON(v)
	if err != nil {
		statusCode = http.StatusInternalServerError
		body = []byte(`{"error":"Internal server error"}` + "\n")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(body); writeErr != nil {
		return writeErr
	}
	return err
}

// WriteError writes a standardized JSON error response: {"error": message}
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{"error": message})
}
