package health

// Service reports liveness plus the configured provider. It never touches the
// network, so a missing or invalid credential does not fail the check.
type Service struct {
	provider string
	model    string
	sessions func() int
}

// NewService constructs a health service. sessions may be nil.
func NewService(provider, model string, sessions func() int) *Service {
	return &Service{provider: provider, model: model, sessions: sessions}
}

// Status returns the health payload.
func (s *Service) Status() map[string]any {
	out := map[string]any{"ok": true, "provider": s.provider, "model": s.model}
	if s.sessions != nil {
		out["sessions"] = s.sessions()
	}
	return out
}
