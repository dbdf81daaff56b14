package events

import "time"

// SendState mirrors the lifecycle a queued message moves through, as seen
// by observers (see internal/store.MessageStatus for the persisted form).
type SendState string

const (
	SendEnqueued SendState = "enqueued"
	SendSending  SendState = "sending"
	SendSent     SendState = "sent"
	SendFailed   SendState = "failed"
)

// SendStatusUpdate reports one transition in a message's send lifecycle.
type SendStatusUpdate struct {
	MessageID uint64
	ChannelID uint64
	State     SendState
	Err       string // empty unless State == SendFailed
	At        time.Time
}

// DiffOp names one TimelineDiff variant (§4.6): Reset replaces the whole
// visible window, Append adds a newly-arrived or newly-sent item,
// UpdateByItemId patches one item in place (status change, edit), and
// RemoveByItemId drops one item (revoke, soft-delete).
type DiffOp string

const (
	DiffReset          DiffOp = "reset"
	DiffAppend         DiffOp = "append"
	DiffUpdateByItemID DiffOp = "update_by_item_id"
	DiffRemoveByItemID DiffOp = "remove_by_item_id"
)

// TimelineDiff is one ordered mutation of a channel's message timeline.
// ItemID is always a local message.id, never a server_message_id.
type TimelineDiff struct {
	ChannelID uint64
	Op        DiffOp
	ItemID    uint64 // set for UpdateByItemID / RemoveByItemID
	Values    []any  // set for Reset (full window) / Append (single item)
}

// ChannelListOp names one ChannelListUpdate variant.
type ChannelListOp string

const (
	ChannelListReset  ChannelListOp = "reset"
	ChannelListUpdate ChannelListOp = "update"
	ChannelListRemove ChannelListOp = "remove"
)

// ChannelListUpdateEvent reports a change to the channel list (last message
// preview, unread count, membership).
type ChannelListUpdateEvent struct {
	Op        ChannelListOp
	ChannelID uint64
	Values    []any
}

// TypingPhase distinguishes a started-typing from a stopped-typing signal.
type TypingPhase string

const (
	TypingStarted TypingPhase = "started"
	TypingStopped TypingPhase = "stopped"
)

// TypingIndicator reports a peer's typing state in a channel.
type TypingIndicator struct {
	ChannelID uint64
	UserID    uint64
	Phase     TypingPhase
	At        time.Time
}

// ReadReceiptReceived reports that a peer has seen messages up to SeenID.
type ReadReceiptReceived struct {
	ChannelID uint64
	UserID    uint64
	SeenID    uint64
	At        time.Time
}

// ConnectionState mirrors the public connection lifecycle exposed to hosts.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnReconnecting ConnectionState = "reconnecting"
)

// ConnectionStateChanged reports a transition in the transport's connection
// lifecycle.
type ConnectionStateChanged struct {
	Old ConnectionState
	New ConnectionState
	At  time.Time
}

// SyncPhase mirrors the Sync Coordinator's supervised-loop phase.
type SyncPhase string

const (
	SyncIdle       SyncPhase = "idle"
	SyncRunning    SyncPhase = "running"
	SyncBackingOff SyncPhase = "backing_off"
	SyncError      SyncPhase = "error"
)

// SyncStatus reports the sync loop's current phase, emitted through the
// Event Manager so a host UI can reflect "still trying" state.
type SyncStatus struct {
	Phase SyncPhase
	Err   string
	At    time.Time
}

// MessageReceived reports a freshly stored inbound message (after dedup).
type MessageReceived struct {
	ChannelID uint64
	MessageID uint64
}

// UserPresenceChanged reports a peer's online/offline presence flip.
type UserPresenceChanged struct {
	UserID uint64
	Online bool
	At     time.Time
}
