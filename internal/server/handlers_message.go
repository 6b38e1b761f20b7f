package server

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/acontext-run/runtime/internal/codec"
	"github.com/acontext-run/runtime/internal/mq"
	"github.com/acontext-run/runtime/pkg/types"
)

const uploadsDiskName = "uploads"

const maxMultipartMemory = 32 << 20 // 32MiB held in memory before spilling to tmp files

// sendMessageJSONBody is the JSON-body shape of POST /sessions/{id}/messages
// when no part carries a file: {format, role, blob, model_params?}. blob is
// the format-specific wire representation internal/codec.Decode parses.
type sendMessageJSONBody struct {
	Format      string             `json:"format"`
	Role        string             `json:"role"`
	Blob        json.RawMessage    `json:"blob"`
	ModelParams *types.ModelParams `json:"model_params,omitempty"`
}

// The multipart path's "parts" form field carries a JSON array of native
// acontext Parts; file-typed entries carry only FileName/MimeType, with the
// bytes arriving in the same-indexed file_N form file field (spec.md §6's
// "file_0, file_1, …" convention).

type sendMessageResponse struct {
	MessageID string `json:"message_id"`
}

// sendMessage handles POST /sessions/{sessionID}/messages. A request whose
// Content-Type is multipart/form-data is routed through the file-bearing
// path; everything else (including acontext/openai/anthropic JSON blobs
// with no files) goes through the plain JSON path.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := s.db.Sessions.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found", err.Error())
		return
	}

	var role string
	var parts []types.Part
	var modelParams *types.ModelParams

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		role, parts, modelParams, err = s.decodeMultipartMessage(r, session.ProjectID)
	} else {
		role, parts, modelParams, err = s.decodeJSONMessage(r)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message body", err.Error())
		return
	}
	if role == "" {
		writeError(w, http.StatusBadRequest, "role is required", "")
		return
	}

	msg, err := s.db.Messages.Insert(r.Context(), sessionID, role, parts, modelParams)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store message", err.Error())
		return
	}

	body, err := json.Marshal(map[string]any{
		"project_id":        session.ProjectID,
		"session_id":        sessionID,
		"message_id":        msg.ID,
		"skip_latest_check": false,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode buffer-controller event", err.Error())
		return
	}
	if err := s.mq.Publish(r.Context(), mq.TopicNewMessage, body, nil); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to publish new-message", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{MessageID: msg.ID})
}

func (s *Server) decodeJSONMessage(r *http.Request) (string, []types.Part, *types.ModelParams, error) {
	var body sendMessageJSONBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", nil, nil, fmt.Errorf("decode JSON body: %w", err)
	}
	format := body.Format
	if format == "" {
		format = string(codec.FormatAcontext)
	}
	c, err := codec.For(codec.Format(format))
	if err != nil {
		return "", nil, nil, err
	}
	parts, err := c.Decode(body.Blob)
	if err != nil {
		return "", nil, nil, err
	}
	return body.Role, parts, body.ModelParams, nil
}

func (s *Server) decodeMultipartMessage(r *http.Request, projectID string) (string, []types.Part, *types.ModelParams, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return "", nil, nil, fmt.Errorf("parse multipart form: %w", err)
	}

	role := r.FormValue("role")

	var parts []types.Part
	if raw := r.FormValue("parts"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &parts); err != nil {
			return "", nil, nil, fmt.Errorf("decode parts field: %w", err)
		}
	}

	var modelParams *types.ModelParams
	if raw := r.FormValue("model_params"); raw != "" {
		modelParams = &types.ModelParams{}
		if err := json.Unmarshal([]byte(raw), modelParams); err != nil {
			return "", nil, nil, fmt.Errorf("decode model_params field: %w", err)
		}
	}

	fileIndex := 0
	for i := range parts {
		if !parts[i].IsFile() {
			continue
		}
		fieldName := "file_" + strconv.Itoa(fileIndex)
		fileIndex++

		file, header, err := r.FormFile(fieldName)
		if err != nil {
			return "", nil, nil, fmt.Errorf("read %s: %w", fieldName, err)
		}
		filled, err := s.storeUploadedFile(r.Context(), projectID, parts[i], file, header)
		file.Close()
		if err != nil {
			return "", nil, nil, err
		}
		parts[i] = filled
	}

	return role, parts, modelParams, nil
}

// storeUploadedFile reads one multipart file part fully, hashes it, and
// writes it to the session's project's "uploads" disk — the artifact index
// this repository owns. The object store itself (where artifact bytes
// ultimately live at scale) is an external collaborator (spec.md §1
// Non-goals); this inline path is a stand-in content store for the
// artifact's small-file case, same as internal/skilllearn's inline skill
// files.
func (s *Server) storeUploadedFile(ctx context.Context, projectID string, part types.Part, file multipart.File, header *multipart.FileHeader) (types.Part, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return types.Part{}, fmt.Errorf("read uploaded file: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	disk, err := s.db.Disks.GetOrCreateByName(ctx, projectID, uploadsDiskName)
	if err != nil {
		return types.Part{}, fmt.Errorf("provision uploads disk: %w", err)
	}

	path := hash + "/" + header.Filename
	if _, err := s.db.Disks.PutArtifact(ctx, disk.ID, path, hash, base64.StdEncoding.EncodeToString(data), int64(len(data))); err != nil {
		return types.Part{}, fmt.Errorf("store artifact: %w", err)
	}

	part.FileName = header.Filename
	if part.MimeType == "" {
		part.MimeType = header.Header.Get("Content-Type")
	}
	part.SHA256 = hash
	part.Size = int64(len(data))
	part.ArtifactPath = path
	return part, nil
}
