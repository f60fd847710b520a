package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody mirrors the handler package's failure envelope so middleware
// rejections look the same to clients.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
