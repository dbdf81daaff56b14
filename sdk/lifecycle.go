package sdk

import "context"

// OnAppForeground resumes the supervised sync loop and reconnects if the
// transport session dropped while backgrounded. Host apps call this from
// their own foreground lifecycle callback.
func (s *SDK) OnAppForeground(ctx context.Context) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	s.mu.RLock()
	connected := s.session != nil
	s.mu.RUnlock()
	if !connected {
		return s.Connect(ctx)
	}
	s.coordinator.StartSupervisedSync(s.runCtx)
	return nil
}

// OnAppBackground pauses the supervised sync loop to avoid needless battery
// and network use while the host app is backgrounded; the transport session
// and send queue keep running so in-flight sends still complete.
func (s *SDK) OnAppBackground(ctx context.Context) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	s.coordinator.StopSupervisedSync()
	return nil
}

// EnterForeground is an alias for OnAppForeground for hosts that use that
// naming convention.
func (s *SDK) EnterForeground(ctx context.Context) error { return s.OnAppForeground(ctx) }

// EnterBackground is an alias for OnAppBackground for hosts that use that
// naming convention.
func (s *SDK) EnterBackground(ctx context.Context) error { return s.OnAppBackground(ctx) }
