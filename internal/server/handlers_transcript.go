package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/acontext-run/runtime/internal/codec"
	"github.com/acontext-run/runtime/pkg/types"
)

const defaultMessagesLimit = 50

var errInvalidTokenReduceTo = errors.New("middle_out requires a positive token_reduce_to")

// editStrategyRequest is one entry of the edit_strategies query/body array.
// Only middle_out is core-relevant (spec.md §4.1/§8); any other type is
// accepted and ignored rather than rejected, since the wire contract names
// edit_strategies as "an ordered list" without closing it to one member.
type editStrategyRequest struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

// getMessages handles GET /sessions/{sessionID}/messages. format selects
// the wire codec; limit/cursor paginate oldest-first by message id; an
// optional edit_strategies query param (JSON-encoded array) applies
// middle_out trimming to the page before encoding.
func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(codec.FormatAcontext)
	}
	c, err := codec.For(codec.Format(format))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown format", err.Error())
		return
	}

	limit := defaultMessagesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", "")
			return
		}
		limit = n
	}
	cursor := r.URL.Query().Get("cursor")

	if _, err := s.db.Sessions.Get(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusNotFound, "session not found", err.Error())
		return
	}

	all, err := s.db.Messages.ListBySession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages", err.Error())
		return
	}

	page, nextCursor := paginateMessages(all, cursor, limit)

	if raw := r.URL.Query().Get("edit_strategies"); raw != "" {
		var strategies []editStrategyRequest
		if err := json.Unmarshal([]byte(raw), &strategies); err != nil {
			writeError(w, http.StatusBadRequest, "invalid edit_strategies", err.Error())
			return
		}
		page, err = applyEditStrategies(page, strategies)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid edit_strategies", err.Error())
			return
		}
	}

	flattened := make([]types.Message, len(page))
	for i, m := range page {
		flattened[i] = *m
	}

	raw, err := c.Encode(flattened)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode messages", err.Error())
		return
	}

	var data json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to marshal messages", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": data,
		"cursor":   nextCursor,
	})
}

// paginateMessages returns the page of all starting just after cursor (a
// message id), capped at limit, plus the cursor for the next page (empty
// when the page reaches the end).
func paginateMessages(all []*types.Message, cursor string, limit int) ([]*types.Message, string) {
	start := 0
	if cursor != "" {
		for i, m := range all {
			if m.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(all) {
		return nil, ""
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]
	next := ""
	if end < len(all) {
		next = page[len(page)-1].ID
	}
	return page, next
}

// applyEditStrategies runs each requested strategy over page in order. Only
// middle_out is implemented; unrecognized strategy types pass through
// untouched (see editStrategyRequest).
func applyEditStrategies(page []*types.Message, strategies []editStrategyRequest) ([]*types.Message, error) {
	for _, st := range strategies {
		if st.Type != "middle_out" {
			continue
		}
		var params codec.MiddleOutParams
		if len(st.Params) > 0 {
			if err := json.Unmarshal(st.Params, &params); err != nil {
				return nil, err
			}
		}
		if params.TokenReduceTo <= 0 {
			return nil, errInvalidTokenReduceTo
		}

		deref := make([]types.Message, len(page))
		for i, m := range page {
			deref[i] = *m
		}
		reduced := codec.ApplyMiddleOut(deref, params.TokenReduceTo)

		out := make([]*types.Message, len(reduced))
		for i := range reduced {
			out[i] = &reduced[i]
		}
		page = out
	}
	return page, nil
}
