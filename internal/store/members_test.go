package store

import (
	"context"
	"testing"
)

func TestSaveUsersBatchUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveUsers(ctx, []User{
		{UserID: 1, Username: "a", Nickname: "A"},
		{UserID: 2, Username: "b", Nickname: "B"},
	}); err != nil {
		t.Fatalf("SaveUsers: %v", err)
	}
	if err := db.SaveUser(ctx, User{UserID: 1, Username: "a", Nickname: "A2"}); err != nil {
		t.Fatalf("SaveUser upsert: %v", err)
	}

	got, err := db.GetUsersByIDs(ctx, []uint64{1, 2})
	if err != nil {
		t.Fatalf("GetUsersByIDs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	for _, u := range got {
		if u.UserID == 1 && u.Nickname != "A2" {
			t.Errorf("nickname = %q, want A2 (upsert should overwrite)", u.Nickname)
		}
	}
}

func TestGetUserNotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetUser(context.Background(), 999); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveAndDeleteFriend(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveFriend(ctx, Friend{UserID: 5, Alias: "buddy"}); err != nil {
		t.Fatalf("SaveFriend: %v", err)
	}
	friends, err := db.GetFriends(ctx)
	if err != nil {
		t.Fatalf("GetFriends: %v", err)
	}
	if len(friends) != 1 || friends[0].UserID != 5 {
		t.Fatalf("friends = %+v", friends)
	}

	if err := db.DeleteFriend(ctx, 5); err != nil {
		t.Fatalf("DeleteFriend: %v", err)
	}
	friends, err = db.GetFriends(ctx)
	if err != nil {
		t.Fatalf("GetFriends after delete: %v", err)
	}
	if len(friends) != 0 {
		t.Errorf("friends after delete = %+v, want empty", friends)
	}
}

func TestChannelMembersRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveChannelMembers(ctx, []ChannelMember{
		{ChannelID: 7, ChannelType: ChannelTypeGroup, MemberUID: 1, Role: "owner"},
		{ChannelID: 7, ChannelType: ChannelTypeGroup, MemberUID: 2, Role: "member"},
	}); err != nil {
		t.Fatalf("SaveChannelMembers: %v", err)
	}

	members, err := db.GetGroupMembers(ctx, 7, ChannelTypeGroup)
	if err != nil {
		t.Fatalf("GetGroupMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len(members) = %d, want 2", len(members))
	}

	if err := db.DeleteChannelMember(ctx, 7, ChannelTypeGroup, 2); err != nil {
		t.Fatalf("DeleteChannelMember: %v", err)
	}
	members, err = db.GetGroupMembers(ctx, 7, ChannelTypeGroup)
	if err != nil {
		t.Fatalf("GetGroupMembers after delete: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("len(members) = %d, want 1 after delete", len(members))
	}
}

func TestReadReceiptsTrackSeenBy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveReadReceipt(ctx, 1, 100, 50); err != nil {
		t.Fatalf("SaveReadReceipt: %v", err)
	}

	seen, err := db.IsEventReadBy(ctx, 1, 100, 40)
	if err != nil || !seen {
		t.Fatalf("IsEventReadBy(40) = %v, %v, want true", seen, err)
	}
	notSeen, err := db.IsEventReadBy(ctx, 1, 100, 60)
	if err != nil || notSeen {
		t.Fatalf("IsEventReadBy(60) = %v, %v, want false", notSeen, err)
	}

	seenBy, err := db.SeenByForEvent(ctx, 1, 50)
	if err != nil {
		t.Fatalf("SeenByForEvent: %v", err)
	}
	if len(seenBy) != 1 || seenBy[0] != 100 {
		t.Errorf("SeenByForEvent = %+v, want [100]", seenBy)
	}
}

func TestGroupsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveGroups(ctx, []Group{{GroupID: 1, OwnerID: 9, Avatar: "a"}}); err != nil {
		t.Fatalf("SaveGroups: %v", err)
	}
	g, err := db.GetGroup(ctx, 1)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if g.OwnerID != 9 || g.Dismissed {
		t.Errorf("unexpected group: %+v", g)
	}

	if err := db.SaveGroups(ctx, []Group{{GroupID: 1, OwnerID: 9, Dismissed: true}}); err != nil {
		t.Fatalf("SaveGroups dismiss: %v", err)
	}
	g, err = db.GetGroup(ctx, 1)
	if err != nil {
		t.Fatalf("GetGroup after dismiss: %v", err)
	}
	if !g.Dismissed {
		t.Error("expected group to be dismissed after upsert")
	}
}
