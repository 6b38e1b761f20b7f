package server

import (
	"encoding/json"
	"net/http"

	"github.com/acontext-run/runtime/internal/apierr"
)

// Envelope is the response shape every endpoint writes, exactly as spec.md
// §6 prescribes: {code, msg, error?, data?}. It replaces the teacher's
// {error:{code,message,details}} shape one-for-one (internal/server's
// writeJSON/writeError below are the direct descendants of the teacher's
// response.go helpers of the same name).
type Envelope struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// writeJSON writes a successful envelope carrying data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Code: status, Msg: "ok", Data: data})
}

// writeError writes an error envelope. httpStatus is the transport-level
// status; msg is the human-facing summary, err the lower-level detail.
func writeError(w http.ResponseWriter, httpStatus int, msg, err string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(Envelope{Code: httpStatus, Msg: msg, Error: err})
}

// writeAPIErr writes the envelope with aerr.Code as the HTTP status (the
// apierr constructors set Code from the error's class).
func writeAPIErr(w http.ResponseWriter, aerr *apierr.Error) {
	writeError(w, aerr.Code, aerr.Message, errString(aerr.Cause))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
