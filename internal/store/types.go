package store

// Message status values. Persisted as their string form directly in the
// message table, so no lookup table is needed to interpret a row.
const (
	StatusPending  = "pending"
	StatusSending  = "sending"
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusRevoked  = "revoked"
	StatusDelivered = "delivered"
	StatusRead     = "read"
	StatusExpired  = "expired"
)

// Channel type constants. Direct channels are canonicalized to
// ChannelTypeDirect on write; ChannelTypeDirectLegacy only ever appears in
// rows written by older protocol peers before coalescing runs.
const (
	ChannelTypeDirectLegacy = 0
	ChannelTypeDirect       = 1
	ChannelTypeGroup        = 2
)

// Message is a single timeline row. id is the only handle the host ever
// uses for post-send operations; ServerMessageID is populated later by an
// ack and may be absent.
type Message struct {
	ID              uint64
	ServerMessageID uint64 // 0 means absent/unset
	ChannelID       uint64
	ChannelType     int
	FromUID         uint64
	Timestamp       int64
	Content         string
	MessageType     string
	Status          string
	Pts             uint64
	OrderSeq        uint64
	Revoked         bool
	RevokedAt       int64
	RevokedBy       uint64
	Extra           string
	IsDeleted       bool
}

// Channel is a conversation row, direct or group.
type Channel struct {
	ChannelID       uint64
	ChannelType     int
	LastMsgTimestamp int64
	LastMsgContent  string
	UnreadCount     uint32
	LastMsgPts      uint64
	Top             bool
	Mute            bool
	Save            bool
	LowPriority     bool
	Follow          bool
	Name            string
	Avatar          string
	Remark          string
	Version         uint64
	RemoteExtra     string
	CreatedAt       int64
	UpdatedAt       int64
}

// ChannelMember is one row of channel_member.
type ChannelMember struct {
	ChannelID   uint64
	ChannelType int
	MemberUID   uint64
	Role        string
	Remark      string
	InviteChain string
}

// Friend is one row of the friend table, keyed by peer user id.
type Friend struct {
	UserID    uint64
	Alias     string
	CreatedAt int64
}

// User is a cached directory row used for display only.
type User struct {
	UserID   uint64
	Username string
	Nickname string
	Avatar   string
	UserType int
}

// Group is a group_id-keyed row.
type Group struct {
	GroupID   uint64
	OwnerID   uint64
	Avatar    string
	Dismissed bool
}

// SendTaskRow is the durable outbound task backing a pending/sending Message.
type SendTaskRow struct {
	ID            uint64
	MessageID     uint64
	ClientMsgNo   string
	ChannelID     uint64
	ChannelType   int
	Payload       string
	AttemptCount  int
	NextRetryAt   int64
	LastErrorClass string
	Terminal      bool
	CreatedAt     int64
}

// SyncCursorRow is the last observed server cursor for one entity kind
// (optionally scoped, e.g. per-group membership cursor).
type SyncCursorRow struct {
	EntityKind string
	Scope      string
	Cursor     string
	Completed  bool
	UpdatedAt  int64
}

// Reaction is one row of message_reaction.
type Reaction struct {
	MessageID uint64
	UID       uint64
	Reaction  string
	CreatedAt int64
}

// ReadReceipt is one row of read_receipts: the last message a user has read
// in a channel.
type ReadReceipt struct {
	ChannelID       uint64
	UID             uint64
	LastReadMsgID   uint64
	LastReadAt      int64
}

// ChannelReadState aggregates read-state bookkeeping per channel, distinct
// from the per-user ReadReceipt rows (this is the local user's own state).
type ChannelReadState struct {
	ChannelID   uint64
	LastReadID  uint64
	LastReadAt  int64
}

// MessageEdit is one row of message_edit_history.
type MessageEdit struct {
	MessageID       uint64
	EditedAt        int64
	PreviousContent string
}

// isDirect reports whether a channel_type value marks a direct channel:
// the legacy 0 or the canonical 1.
func isDirect(channelType int) bool {
	return channelType == ChannelTypeDirectLegacy || channelType == ChannelTypeDirect
}
