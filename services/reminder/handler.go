package reminder

import (
	"context"
	"time"

	"cnec-platform/pkg/taskname"
	"cnec-platform/services/deadline"
	"cnec-platform/services/notification"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Handler runs the periodic overdue scan and hands each hit to the external
// notification service. It never writes to core tables.
type Handler struct {
	deadlines *deadline.Service
	publisher notification.Publisher
}

type HandlerParams struct {
	fx.In
	Deadlines *deadline.Service
	Publisher notification.Publisher
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		deadlines: p.Deadlines,
		publisher: p.Publisher,
	}
}

var Module = fx.Module("reminder.handler",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(mux *asynq.ServeMux, h *Handler) {
	mux.HandleFunc(taskname.ReminderDispatchDue, h.HandleDispatchDue)
}

func (h *Handler) HandleDispatchDue(ctx context.Context, t *asynq.Task) error {
	now := time.Now()
	overdue, err := h.deadlines.ListOverdue(ctx, now)
	if err != nil {
		return err
	}

	for _, o := range overdue {
		ev := notification.Event{
			Type:          notification.EventSlotReminderDue,
			ApplicationID: o.ApplicationID,
			CampaignID:    o.CampaignID,
			UserID:        o.UserID,
			Slot:          string(o.Slot),
			Deadline:      o.Deadline,
			OccurredAt:    now,
		}
		if err := h.publisher.Publish(ctx, ev); err != nil {
			return err
		}
	}

	zap.L().Info("reminder scan dispatched",
		zap.Int("overdue_slots", len(overdue)),
	)
	return nil
}
