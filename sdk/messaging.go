package sdk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/privchat/privchat-sdk-sub000/internal/errs"
	"github.com/privchat/privchat-sdk-sub000/internal/events"
	"github.com/privchat/privchat-sdk-sub000/internal/store"
)

// revokeWindow bounds how long after sending a message can still be
// revoked, mirroring the teacher's own fixed-window takeback rule.
const revokeWindow = 2 * time.Minute

// SendMessage enqueues a text message for channelID and returns the locally
// assigned message id immediately; delivery outcome arrives later as a
// SendStatusUpdate event (§4.1, §4.9).
func (s *SDK) SendMessage(ctx context.Context, channelID uint64, channelType int, content string) (uint64, error) {
	return s.SendMessageWithOptions(ctx, channelID, channelType, content, "text", nil)
}

// SendMessageWithOptions is SendMessage generalized to an explicit message
// type and an extra payload (reply-to, mentions, etc).
func (s *SDK) SendMessageWithOptions(ctx context.Context, channelID uint64, channelType int, content, messageType string, extra map[string]any) (uint64, error) {
	if err := s.requireInitialized(); err != nil {
		return 0, err
	}
	id, err := s.q.Enqueue(ctx, channelID, channelType, s.uid, content, messageType, extra)
	if err != nil {
		return 0, errs.Wrap(errs.KindDatabase, "SendMessage", err)
	}
	s.em.Publish(events.KindSendStatus, events.SendStatusUpdate{
		MessageID: id,
		ChannelID: channelID,
		State:     events.SendEnqueued,
		At:        time.Now(),
	})
	s.em.Publish(events.KindTimelineDiff, events.TimelineDiff{ChannelID: channelID, Op: events.DiffAppend, ItemID: id})
	return id, nil
}

// SendAttachmentBytes copies raw attachment bytes into the configured
// assets directory, content-addressed by sha256, and enqueues an
// "attachment" message pointing at the stored copy.
func (s *SDK) SendAttachmentBytes(ctx context.Context, channelID uint64, channelType int, filename string, data []byte) (uint64, error) {
	if err := s.requireInitialized(); err != nil {
		return 0, err
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	destDir := filepath.Join(s.cfg.AssetsDir, "attachments")
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return 0, errs.Wrap(errs.KindConfig, "SendAttachmentBytes", err)
	}
	dest := filepath.Join(destDir, digest+filepath.Ext(filename))
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return 0, errs.Wrap(errs.KindConfig, "SendAttachmentBytes", err)
	}
	extra := map[string]any{"filename": filename, "path": dest, "size": len(data), "sha256": digest}
	return s.SendMessageWithOptions(ctx, channelID, channelType, filename, "attachment", extra)
}

// SendAttachmentFromPath reads srcPath and delegates to SendAttachmentBytes.
func (s *SDK) SendAttachmentFromPath(ctx context.Context, channelID uint64, channelType int, srcPath string) (uint64, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return 0, errs.Wrap(errs.KindConfig, "SendAttachmentFromPath", err)
	}
	return s.SendAttachmentBytes(ctx, channelID, channelType, filepath.Base(srcPath), data)
}

// attachmentMeta mirrors the extra payload SendAttachmentBytes stores.
type attachmentMeta struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	SHA256   string `json:"sha256"`
}

// DownloadAttachmentToCache copies a previously sent/received attachment's
// stored file into the cache dir (creating it if needed) and returns the
// cached path; for this facade attachments are already local, so this is a
// cache-population copy rather than a network fetch.
func (s *SDK) DownloadAttachmentToCache(ctx context.Context, messageID uint64) (string, error) {
	m, meta, err := s.attachmentByMessageID(ctx, messageID)
	if err != nil {
		return "", err
	}
	cacheDir := filepath.Join(s.cfg.AssetsDir, "cache")
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return "", errs.Wrap(errs.KindConfig, "DownloadAttachmentToCache", err)
	}
	dest := filepath.Join(cacheDir, fmt.Sprintf("%d_%s", m.ID, filepath.Base(meta.Path)))
	return dest, s.copyAttachment(meta.Path, dest)
}

// DownloadAttachmentToPath copies the attachment to an explicit destination.
func (s *SDK) DownloadAttachmentToPath(ctx context.Context, messageID uint64, destPath string) error {
	_, meta, err := s.attachmentByMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	return s.copyAttachment(meta.Path, destPath)
}

func (s *SDK) attachmentByMessageID(ctx context.Context, messageID uint64) (store.Message, attachmentMeta, error) {
	m, err := s.actor.GetMessageByID(ctx, messageID)
	if err != nil {
		return store.Message{}, attachmentMeta{}, errs.Wrap(errs.KindDatabase, "attachmentByMessageID", err)
	}
	if m.MessageType != "attachment" {
		return store.Message{}, attachmentMeta{}, errs.New(errs.KindInvalidOperation, "attachmentByMessageID", "message is not an attachment")
	}
	var meta attachmentMeta
	if err := json.Unmarshal([]byte(m.Extra), &meta); err != nil {
		return store.Message{}, attachmentMeta{}, errs.Wrap(errs.KindDatabase, "attachmentByMessageID", err)
	}
	return m, meta, nil
}

func (s *SDK) copyAttachment(srcPath, destPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return errs.Wrap(errs.KindConfig, "copyAttachment", err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return errs.Wrap(errs.KindConfig, "copyAttachment", err)
	}
	if err := os.WriteFile(destPath, data, 0o600); err != nil {
		return errs.Wrap(errs.KindConfig, "copyAttachment", err)
	}
	return nil
}

// MarkAsRead advances the local channel read cursor to messageID; the
// server-facing receipt wire call is out of scope (see DESIGN.md), so this
// only updates local state and the read-state event fan-out.
func (s *SDK) MarkAsRead(ctx context.Context, channelID uint64, channelType int, messageID uint64) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.actor.MarkChannelRead(ctx, channelID, channelType, messageID); err != nil {
		return errs.Wrap(errs.KindDatabase, "MarkAsRead", err)
	}
	return nil
}

// RevokeMessage takes back a message sent by the local user within the
// fixed revoke window; past the window it fails with KindInvalidOperation.
func (s *SDK) RevokeMessage(ctx context.Context, messageID uint64) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	m, err := s.actor.GetMessageByID(ctx, messageID)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, "RevokeMessage", err)
	}
	if m.FromUID != s.uid {
		return errs.New(errs.KindInvalidOperation, "RevokeMessage", "cannot revoke another user's message")
	}
	sentAt := time.UnixMilli(m.Timestamp)
	if time.Since(sentAt) > revokeWindow {
		return errs.New(errs.KindInvalidOperation, "RevokeMessage", "revoke window has elapsed")
	}
	if err := s.actor.RevokeMessage(ctx, messageID, s.uid); err != nil {
		return errs.Wrap(errs.KindDatabase, "RevokeMessage", err)
	}
	s.em.Publish(events.KindTimelineDiff, events.TimelineDiff{ChannelID: m.ChannelID, Op: events.DiffUpdateByItemID, ItemID: messageID})
	return nil
}

// EditMessage replaces a message's content in place, recording history.
func (s *SDK) EditMessage(ctx context.Context, messageID uint64, newContent string) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	m, err := s.actor.GetMessageByID(ctx, messageID)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, "EditMessage", err)
	}
	if m.FromUID != s.uid {
		return errs.New(errs.KindInvalidOperation, "EditMessage", "cannot edit another user's message")
	}
	if err := s.actor.UpdateMessageContent(ctx, messageID, newContent); err != nil {
		return errs.Wrap(errs.KindDatabase, "EditMessage", err)
	}
	s.em.Publish(events.KindTimelineDiff, events.TimelineDiff{ChannelID: m.ChannelID, Op: events.DiffUpdateByItemID, ItemID: messageID})
	return nil
}

// RetryMessage re-arms a failed message for another delivery attempt.
func (s *SDK) RetryMessage(ctx context.Context, messageID uint64) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.q.RetryMessage(ctx, messageID); err != nil {
		return errs.Wrap(errs.KindDatabase, "RetryMessage", err)
	}
	return nil
}

// AddReaction attaches an emoji reaction from the local user to a message.
func (s *SDK) AddReaction(ctx context.Context, messageID uint64, reaction string) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.actor.AddMessageReaction(ctx, messageID, s.uid, reaction); err != nil {
		return errs.Wrap(errs.KindDatabase, "AddReaction", err)
	}
	return nil
}

// RemoveReaction removes the local user's reaction from a message.
func (s *SDK) RemoveReaction(ctx context.Context, messageID uint64, reaction string) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.actor.RemoveMessageReaction(ctx, messageID, s.uid, reaction); err != nil {
		return errs.Wrap(errs.KindDatabase, "RemoveReaction", err)
	}
	return nil
}
