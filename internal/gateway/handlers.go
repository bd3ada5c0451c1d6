// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package gateway

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/nightshade-games/orchestrator/internal/display"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/session"
	"github.com/nightshade-games/orchestrator/internal/validation"
)

// handle dispatches one inbound envelope. Runs on the client's read
// goroutine; every service it calls is safe for concurrent use. A
// handler failure becomes an error envelope, never a closed socket.
func (h *Hub) handle(c *Client, env Envelope) {
	switch env.Event {
	case EventPing:
		h.sendTo(c, EventPong, nil)
		return
	case EventAuth, EventIdentify:
		h.handleAuth(c, env)
		return
	}

	if !c.authed {
		h.sendError(c, models.CodeAuthRequired, "authenticate before sending "+env.Event)
		_ = c.conn.Close()
		return
	}

	switch env.Event {
	case EventTransactionSubmit:
		h.handleSubmit(c, env)
	case EventGMCommand:
		h.handleCommand(c, env)
	default:
		h.sendError(c, models.CodeValidationError, "unknown event "+env.Event)
	}
}

// handleAuth processes the handshake (auth) or the legacy gm:identify
// frame. Both carry the same payload and are validated the same way.
func (h *Hub) handleAuth(c *Client, env Envelope) {
	var frame authFrame
	if err := json.Unmarshal(env.Data, &frame); err != nil {
		h.sendError(c, models.CodeValidationError, "malformed auth payload")
		_ = c.conn.Close()
		return
	}

	if _, err := h.deps.Auth.VerifyBearer(frame.Token); err != nil {
		logging.Warn().Str("deviceId", frame.DeviceID).Str("ip", c.ip).Msg("socket auth rejected")
		h.sendError(c, models.CodeAuthRequired, "invalid or expired token")
		_ = c.conn.Close()
		return
	}

	deviceType := models.DeviceType(frame.DeviceType)
	if deviceType != models.DeviceGM && deviceType != models.DeviceAdmin {
		h.sendError(c, models.CodeValidationError, "deviceType must be gm or admin")
		_ = c.conn.Close()
		return
	}
	if frame.DeviceID == "" {
		h.sendError(c, models.CodeValidationError, "deviceId is required")
		_ = c.conn.Close()
		return
	}

	c.authed = true
	c.deviceID = frame.DeviceID
	c.deviceType = deviceType

	h.deps.Registry.Add(models.DeviceInfo{
		DeviceID: frame.DeviceID,
		Type:     deviceType,
		IP:       c.ip,
	})

	h.sendTo(c, EventAuthSuccess, map[string]string{"deviceId": frame.DeviceID})
	h.sendTo(c, EventSyncFull, h.deps.Projector.Snapshot())
	logging.Info().Str("deviceId", frame.DeviceID).Str("type", string(deviceType)).
		Str("version", frame.Version).Msg("station authenticated")
}

// handleSubmit runs a GM scan through the pipeline and replies with the
// private transaction:result. Domain broadcasts ride the event bus.
func (h *Hub) handleSubmit(c *Client, env Envelope) {
	var req models.ScanRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		h.sendError(c, models.CodeValidationError, "malformed transaction:submit payload")
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = c.deviceID
	}
	if req.DeviceType == "" {
		req.DeviceType = c.deviceType
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		h.sendTo(c, EventTransactionResult, models.TransactionResult{
			Status:  models.TxRejected,
			Message: verr.Error(),
		})
		return
	}

	result := h.deps.Pipeline.Process(req)
	h.sendTo(c, EventTransactionResult, result)
}

// handleCommand executes one gm:command action and always acks with a
// message, success or not.
func (h *Hub) handleCommand(c *Client, env Envelope) {
	var frame commandFrame
	if err := json.Unmarshal(env.Data, &frame); err != nil {
		h.sendError(c, models.CodeValidationError, "malformed gm:command payload")
		return
	}

	message, err := h.runCommand(c, frame)
	ack := commandAck{Action: frame.Action, Success: err == nil, Message: message}
	if err != nil {
		ack.Message = err.Error()
		logging.Warn().Str("action", frame.Action).Str("deviceId", c.deviceID).
			Err(err).Msg("gm command failed")
	} else {
		logging.Info().Str("action", frame.Action).Str("deviceId", c.deviceID).Msg("gm command executed")
	}
	h.sendTo(c, EventGMCommandAck, ack)
}

// runCommand is the gm:command action table. Every branch returns a
// human-readable message for the ack.
func (h *Hub) runCommand(c *Client, frame commandFrame) (string, error) {
	switch frame.Action {
	case "session:create":
		var p struct {
			Name  string   `json:"name"`
			Teams []string `json:"teams"`
		}
		if err := decodePayload(frame.Payload, &p); err != nil {
			return "", err
		}
		sess, err := h.deps.Sessions.CreateSession(p.Name, p.Teams)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Session %q created with %d teams", sess.Name, len(sess.Teams)), nil

	case "session:start", "session:resume":
		if _, err := h.deps.Sessions.UpdateSession(session.UpdateArgs{Status: models.SessionActive}); err != nil {
			return "", err
		}
		return "Session active", nil

	case "session:pause":
		if _, err := h.deps.Sessions.UpdateSession(session.UpdateArgs{Status: models.SessionPaused}); err != nil {
			return "", err
		}
		return "Session paused", nil

	case "session:end":
		if _, err := h.deps.Sessions.EndSession(); err != nil {
			return "", err
		}
		return "Session ended", nil

	case "score:adjust":
		var p struct {
			TeamID string `json:"teamId"`
			Delta  int    `json:"delta"`
			Reason string `json:"reason"`
		}
		if err := decodePayload(frame.Payload, &p); err != nil {
			return "", err
		}
		score, err := h.deps.Sessions.AdjustScore(p.TeamID, p.Delta, p.Reason, c.deviceID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Team %s adjusted by %+d (now %d)", p.TeamID, p.Delta, score.CurrentScore), nil

	case "video:play":
		h.deps.Video.Play()
		return "Playback resumed", nil
	case "video:pause":
		h.deps.Video.Pause()
		return "Playback paused", nil
	case "video:stop":
		h.deps.Video.Stop()
		return "Playback stopped", nil
	case "video:skip":
		h.deps.Video.Skip()
		return "Video skipped", nil

	case "video:queue:add":
		var p struct {
			Filename string `json:"filename"`
		}
		if err := decodePayload(frame.Payload, &p); err != nil {
			return "", err
		}
		if p.Filename == "" {
			return "", fmt.Errorf("filename is required")
		}
		enq := h.deps.Video.EnqueueFile(p.Filename)
		if !enq.Queued {
			return "", fmt.Errorf("could not queue %s", p.Filename)
		}
		return fmt.Sprintf("Queued %s", p.Filename), nil

	case "video:queue:reorder":
		var p struct {
			Order []string `json:"order"`
		}
		if err := decodePayload(frame.Payload, &p); err != nil {
			return "", err
		}
		h.deps.Video.Reorder(p.Order)
		return "Queue reordered", nil

	case "video:queue:clear":
		h.deps.Video.Clear()
		return "Queue cleared", nil

	case "transaction:create":
		var req models.ScanRequest
		if err := decodePayload(frame.Payload, &req); err != nil {
			return "", err
		}
		if req.DeviceID == "" {
			req.DeviceID = c.deviceID
		}
		req.DeviceType = models.DeviceAdmin
		if verr := validation.ValidateStruct(&req); verr != nil {
			return "", verr
		}
		result := h.deps.Pipeline.Process(req)
		if result.Status != models.TxAccepted {
			return "", fmt.Errorf("%s", result.Message)
		}
		return fmt.Sprintf("Transaction created: %s for team %s (%d points)", req.TokenID, req.TeamID, result.Points), nil

	case "transaction:delete":
		var p struct {
			TransactionID string `json:"transactionId"`
		}
		if err := decodePayload(frame.Payload, &p); err != nil {
			return "", err
		}
		tx, err := h.deps.Pipeline.Delete(p.TransactionID)
		if err != nil {
			return "", fmt.Errorf("transaction %s not found", p.TransactionID)
		}
		return fmt.Sprintf("Transaction %s deleted (token %s)", tx.ID, tx.TokenID), nil

	case "display:idle-loop":
		h.deps.Video.Stop()
		mode := h.deps.Display.Set(display.ModeIdleLoop)
		return "Display mode: " + string(mode), nil
	case "display:scoreboard":
		mode := h.deps.Display.Set(display.ModeScoreboard)
		return "Display mode: " + string(mode), nil
	case "display:toggle":
		mode := h.deps.Display.Toggle()
		return "Display mode: " + string(mode), nil
	case "display:status":
		return "Display mode: " + string(h.deps.Display.Mode()), nil

	case "offline:process":
		summary := h.deps.Offline.Drain(h.runCtx)
		return fmt.Sprintf("Processed %d offline scans, %d remaining", len(summary.Results), summary.QueueSize), nil

	case "system:reset":
		h.deps.Sessions.Reset()
		h.deps.Pipeline.Reset()
		h.deps.Video.Reset()
		h.deps.Offline.Reset()
		h.deps.Display.Set(display.ModeIdleLoop)
		logging.Warn().Str("deviceId", c.deviceID).Msg("system reset issued")
		return "System reset: session, scores, transactions, and queues cleared", nil
	}

	return "", fmt.Errorf("unknown action %q", frame.Action)
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("payload is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}
