package application

import (
	"cnec-platform/services/submission"

	"go.uber.org/fx"
)

var Module = fx.Module("application.service",
	fx.Provide(
		NewService,
		AsGate,
		AsObserver,
	),
)

// AsGate exposes the state machine as the submission tracker's upload gate.
func AsGate(s *Service) submission.Gate {
	return s
}

// AsObserver exposes the state machine as the submission tracker's change
// observer.
func AsObserver(s *Service) submission.Observer {
	return s
}
