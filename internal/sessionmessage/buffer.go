// Package sessionmessage implements the Buffer Controller and the
// Session-Message Consumer: the two stages that sit between "a message was
// accepted over HTTP" and "the task agent ran for this session". Both are
// plain MQ handlers, grounded on the teacher's internal/session package's
// separation between accepting a prompt and actually running a turn, but
// generalized to the project's two-stage buffer/drain pipeline instead of
// the teacher's one-shot turn model.
package sessionmessage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/acontext-run/runtime/internal/config"
	"github.com/acontext-run/runtime/internal/coordination"
	"github.com/acontext-run/runtime/internal/mq"
	"github.com/acontext-run/runtime/internal/storage"
	"github.com/acontext-run/runtime/pkg/types"
)

// BufferBody is the wire shape carried on new-message and buffered-message,
// matching the field names the server's HTTP accept handler and the timer
// goroutine both populate.
type BufferBody struct {
	ProjectID       string `json:"project_id"`
	SessionID       string `json:"session_id"`
	MessageID       string `json:"message_id"`
	SkipLatestCheck bool   `json:"skip_latest_check"`
}

// Controller is the Buffer Controller: it decides, per inbound message,
// whether to drop it as stale, publish it for immediate processing, or arm
// a timer-backed flush.
type Controller struct {
	DB       *storage.Gateway
	Coord    *coordination.Store
	MQ       *mq.Bus
	Defaults types.ProjectConfig
}

// HandleNewMessage is the new-message topic handler.
func (c *Controller) HandleNewMessage(ctx context.Context, payload []byte, _ map[string]string) error {
	var body BufferBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("sessionmessage: decode new-message: %w", err)
	}
	return c.Handle(ctx, body)
}

// Handle runs the Buffer Controller's staleness/sizing/timer decision for
// one message. The timer goroutine it spawns does not call Handle again: it
// publishes buffered-message itself with skip_latest_check set.
func (c *Controller) Handle(ctx context.Context, body BufferBody) error {
	session, err := c.DB.Sessions.Get(ctx, body.SessionID)
	if err != nil {
		return fmt.Errorf("sessionmessage: get session: %w", err)
	}
	if session.DisableTaskTracking {
		return nil
	}

	project, err := c.DB.Projects.Get(ctx, body.ProjectID)
	if err != nil {
		return fmt.Errorf("sessionmessage: get project: %w", err)
	}
	cfg := config.ResolveProjectConfig(c.Defaults, project.Config)

	if !body.SkipLatestCheck {
		latest, err := c.DB.Messages.LatestPendingID(ctx, body.SessionID)
		if err != nil {
			return fmt.Errorf("sessionmessage: latest pending id: %w", err)
		}
		if latest != body.MessageID {
			return nil
		}
	}

	pending, err := c.DB.Messages.PendingBySession(ctx, body.SessionID)
	if err != nil {
		return fmt.Errorf("sessionmessage: pending by session: %w", err)
	}
	n := len(pending)

	maxTurns := cfg.MaxTurns
	maxOverflow := cfg.MaxOverflow
	ttl := time.Duration(cfg.TTLSeconds) * time.Second

	if n >= maxTurns+maxOverflow || n >= maxTurns {
		return c.publishBuffered(ctx, body.ProjectID, body.SessionID, body.MessageID, false)
	}

	alreadyArmed, err := c.Coord.CheckBufferTimerOrSet(ctx, body.SessionID, ttl)
	if err != nil {
		return fmt.Errorf("sessionmessage: arm buffer timer: %w", err)
	}
	if alreadyArmed {
		return nil
	}

	go c.runDetachedTimer(body.ProjectID, body.SessionID, body.MessageID, ttl)
	return nil
}

// runDetachedTimer sleeps ttl then publishes buffered-message with
// skip_latest_check=true — the single timer-suspension point per session,
// running on its own background context so a canceled request context
// never cuts the timer short.
func (c *Controller) runDetachedTimer(projectID, sessionID, messageID string, ttl time.Duration) {
	time.Sleep(ttl)
	ctx := context.Background()
	_ = c.publishBuffered(ctx, projectID, sessionID, messageID, true)
}

func (c *Controller) publishBuffered(ctx context.Context, projectID, sessionID, messageID string, skipLatestCheck bool) error {
	body := BufferBody{
		ProjectID:       projectID,
		SessionID:       sessionID,
		MessageID:       messageID,
		SkipLatestCheck: skipLatestCheck,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("sessionmessage: marshal buffered-message: %w", err)
	}
	return c.MQ.Publish(ctx, mq.TopicBufferedMessage, payload, nil)
}
