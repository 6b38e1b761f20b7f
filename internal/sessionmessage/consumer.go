package sessionmessage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acontext-run/runtime/internal/apierr"
	"github.com/acontext-run/runtime/internal/config"
	"github.com/acontext-run/runtime/internal/coordination"
	"github.com/acontext-run/runtime/internal/mq"
	"github.com/acontext-run/runtime/internal/storage"
	"github.com/acontext-run/runtime/internal/taskagent"
	"github.com/acontext-run/runtime/pkg/types"
)

// TaskRunner is the surface the Consumer drives once it holds the session
// lock — satisfied by *taskagent.Agent, narrowed here so tests can supply a
// fake without constructing a real LLM client.
type TaskRunner interface {
	Run(ctx context.Context, projectID, sessionID string, pending []*types.Message, cfg types.ProjectConfig) (*taskagent.Result, error)
	DrainLearningTasks(ctx context.Context, projectID, sessionID string, cfg types.ProjectConfig, terminalTaskIDs []string) error
}

// Consumer is the Session-Message Consumer: it drains a session's pending
// messages under a session lock and invokes the Task Agent.
type Consumer struct {
	DB       *storage.Gateway
	Coord    *coordination.Store
	MQ       *mq.Bus
	Agent    TaskRunner
	Defaults types.ProjectConfig
}

// HandleBufferedMessage is the buffered-message topic handler.
func (c *Consumer) HandleBufferedMessage(ctx context.Context, payload []byte, _ map[string]string) error {
	var body BufferBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("sessionmessage: decode buffered-message: %w", err)
	}
	return c.process(ctx, body)
}

// process implements spec.md §4.2's algorithm: staleness recheck, empty
// early-return, lock acquire with republish-on-contention, then the
// try/finally task-agent invocation.
func (c *Consumer) process(ctx context.Context, body BufferBody) error {
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
	if len(pending) == 0 {
		return nil
	}

	project, err := c.DB.Projects.Get(ctx, body.ProjectID)
	if err != nil {
		return fmt.Errorf("sessionmessage: get project: %w", err)
	}
	cfg := config.ResolveProjectConfig(c.Defaults, project.Config)
	lockTTL := time.Duration(cfg.SessionLockTTLSeconds) * time.Second

	token := uuid.NewString()
	if err := c.Coord.CheckRedisLockOrSet(ctx, body.SessionID, token, lockTTL); err != nil {
		if errors.Is(err, coordination.ErrLockHeld) {
			body.SkipLatestCheck = false
			return c.republish(ctx, body)
		}
		return fmt.Errorf("sessionmessage: acquire session lock: %w", err)
	}
	defer func() {
		_ = c.Coord.ReleaseRedisLock(context.Background(), body.SessionID, token)
	}()

	return c.runTaskAgent(ctx, body.ProjectID, body.SessionID, pending, cfg)
}

func (c *Consumer) runTaskAgent(ctx context.Context, projectID, sessionID string, pending []*types.Message, cfg types.ProjectConfig) error {
	result, err := c.Agent.Run(ctx, projectID, sessionID, pending, cfg)
	if err != nil {
		var aerr *apierr.Error
		if errors.As(err, &aerr) {
			ids := make([]string, 0, len(pending))
			for _, m := range pending {
				ids = append(ids, m.ID)
			}
			if aerr.Class == apierr.ClassFatal {
				_ = c.DB.Messages.MarkFailed(context.Background(), ids)
			}
			return nil
		}
		return fmt.Errorf("sessionmessage: task agent run: %w", err)
	}

	if result != nil && len(result.TerminalTaskIDs) > 0 {
		if err := c.Agent.DrainLearningTasks(ctx, projectID, sessionID, cfg, result.TerminalTaskIDs); err != nil {
			return fmt.Errorf("sessionmessage: drain learning tasks: %w", err)
		}
	}
	return nil
}

func (c *Consumer) republish(ctx context.Context, body BufferBody) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("sessionmessage: marshal republish: %w", err)
	}
	return c.MQ.Publish(ctx, mq.TopicBufferedMessage, payload, nil)
}

// FlushManually is the HTTP layer's bounded-retry variant: it loops trying
// to acquire the session lock directly (no republish) and gives up with a
// rejection after maxRetries, rather than spinning forever.
func (c *Consumer) FlushManually(ctx context.Context, projectID, sessionID string) *apierr.Error {
	session, err := c.DB.Sessions.Get(ctx, sessionID)
	if err != nil {
		return apierr.Fatal("get session", err)
	}
	if session.DisableTaskTracking {
		return nil
	}

	project, err := c.DB.Projects.Get(ctx, projectID)
	if err != nil {
		return apierr.Fatal("get project", err)
	}
	cfg := config.ResolveProjectConfig(c.Defaults, project.Config)
	lockTTL := time.Duration(cfg.SessionLockTTLSeconds) * time.Second
	waitBetween := time.Second
	maxRetries := cfg.SessionMessageFlushMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	token := uuid.NewString()
	var acquireErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		acquireErr = c.Coord.CheckRedisLockOrSet(ctx, sessionID, token, lockTTL)
		if acquireErr == nil {
			break
		}
		if !errors.Is(acquireErr, coordination.ErrLockHeld) {
			return apierr.Fatal("acquire session lock", acquireErr)
		}
		select {
		case <-ctx.Done():
			return apierr.Transient("flush canceled waiting for session lock", ctx.Err())
		case <-time.After(waitBetween):
		}
	}
	if acquireErr != nil {
		return apierr.Rejection(fmt.Sprintf("session %s is busy, flush not performed after %d attempts", sessionID, maxRetries))
	}
	defer func() {
		_ = c.Coord.ReleaseRedisLock(context.Background(), sessionID, token)
	}()

	pending, err := c.DB.Messages.PendingBySession(ctx, sessionID)
	if err != nil {
		return apierr.Fatal("pending by session", err)
	}
	if len(pending) == 0 {
		return nil
	}
	if err := c.runTaskAgent(ctx, projectID, sessionID, pending, cfg); err != nil {
		return apierr.Fatal("run task agent", err)
	}
	return nil
}
