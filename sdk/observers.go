package sdk

import "github.com/privchat/privchat-sdk-sub000/internal/events"

// ObserveSends registers obs to fire on every SendStatusUpdate.
func (s *SDK) ObserveSends(obs func(events.SendStatusUpdate)) uint64 {
	return s.em.RegisterSendObserver(obs)
}

// UnobserveSends cancels a subscription started by ObserveSends.
func (s *SDK) UnobserveSends(tok uint64) { s.em.UnregisterSendObserver(tok) }

// ObserveTimeline registers obs to fire on TimelineDiff events for one
// channel only.
func (s *SDK) ObserveTimeline(channelID uint64, obs func(events.TimelineDiff)) uint64 {
	return s.em.RegisterTimelineObserver(channelID, obs)
}

// UnobserveTimeline cancels a subscription started by ObserveTimeline.
func (s *SDK) UnobserveTimeline(tok uint64) { s.em.UnregisterTimelineObserver(tok) }

// ObserveChannelList registers obs to fire on every ChannelListUpdateEvent.
func (s *SDK) ObserveChannelList(obs func(events.ChannelListUpdateEvent)) uint64 {
	return s.em.RegisterChannelListObserver(obs)
}

// UnobserveChannelList cancels a subscription started by ObserveChannelList.
func (s *SDK) UnobserveChannelList(tok uint64) { s.em.UnregisterChannelListObserver(tok) }

// ObserveTyping registers obs to fire on every TypingIndicator.
func (s *SDK) ObserveTyping(obs func(events.TypingIndicator)) uint64 {
	return s.em.RegisterTypingObserver(obs)
}

// UnobserveTyping cancels a subscription started by ObserveTyping.
func (s *SDK) UnobserveTyping(tok uint64) { s.em.UnregisterTypingObserver(tok) }

// ObserveReceipts registers obs to fire on every ReadReceiptReceived.
func (s *SDK) ObserveReceipts(obs func(events.ReadReceiptReceived)) uint64 {
	return s.em.RegisterReceiptObserver(obs)
}

// UnobserveReceipts cancels a subscription started by ObserveReceipts.
func (s *SDK) UnobserveReceipts(tok uint64) { s.em.UnregisterReceiptObserver(tok) }

// PollEvents drains up to max pending events from the polling queue, for
// hosts that prefer pull-based delivery over observer callbacks.
func (s *SDK) PollEvents(max int) []events.SDKEvent {
	return s.em.PollEvents(max)
}
