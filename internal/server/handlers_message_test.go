package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeJSONMessageAcontextFormat(t *testing.T) {
	body := `{"format":"acontext","role":"user","blob":[{"type":"text","text":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/messages", strings.NewReader(body))

	var s Server
	role, parts, modelParams, err := s.decodeJSONMessage(req)
	require.NoError(t, err)
	require.Equal(t, "user", role)
	require.Len(t, parts, 1)
	require.Equal(t, "hi", parts[0].Text)
	require.Nil(t, modelParams)
}

func TestDecodeJSONMessageDefaultsToAcontextFormat(t *testing.T) {
	body := `{"role":"assistant","blob":[{"type":"text","text":"ok"}]}`
	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/messages", strings.NewReader(body))

	var s Server
	role, parts, _, err := s.decodeJSONMessage(req)
	require.NoError(t, err)
	require.Equal(t, "assistant", role)
	require.Len(t, parts, 1)
}

func TestDecodeJSONMessageUnknownFormatErrors(t *testing.T) {
	body := `{"format":"yaml","role":"user","blob":[]}`
	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/messages", strings.NewReader(body))

	var s Server
	_, _, _, err := s.decodeJSONMessage(req)
	require.Error(t, err)
}

func TestDecodeJSONMessageInvalidJSONErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/messages", strings.NewReader("not json"))

	var s Server
	_, _, _, err := s.decodeJSONMessage(req)
	require.Error(t, err)
}

func TestDecodeMultipartMessageTextOnly(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("role", "user"))
	require.NoError(t, mw.WriteField("parts", `[{"type":"text","text":"hello"}]`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/messages", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var s Server
	role, parts, _, err := s.decodeMultipartMessage(req, "proj1")
	require.NoError(t, err)
	require.Equal(t, "user", role)
	require.Len(t, parts, 1)
	require.Equal(t, "hello", parts[0].Text)
}
