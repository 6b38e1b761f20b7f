package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acontext-run/runtime/internal/apierr"
)

func TestWriteJSONEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	require.Equal(t, http.StatusOK, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, http.StatusOK, env.Code)
	require.Equal(t, "ok", env.Msg)
	require.Empty(t, env.Error)
}

func TestWriteErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "bad request", "role is required")

	require.Equal(t, http.StatusBadRequest, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, http.StatusBadRequest, env.Code)
	require.Equal(t, "bad request", env.Msg)
	require.Equal(t, "role is required", env.Error)
	require.Nil(t, env.Data)
}

func TestWriteAPIErrMapsClassCode(t *testing.T) {
	w := httptest.NewRecorder()
	writeAPIErr(w, apierr.Contention("session lock held"))

	require.Equal(t, http.StatusConflict, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, http.StatusConflict, env.Code)
	require.Equal(t, "session lock held", env.Msg)
}
