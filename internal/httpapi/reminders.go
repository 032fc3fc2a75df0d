package httpapi

import (
	"net/http"

	"cnec-platform/pkg/errutil"
	"cnec-platform/pkg/taskname"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// dispatchReminders enqueues an on-demand overdue scan, outside the regular
// scheduled cadence.
func (h *Handler) dispatchReminders(c *gin.Context) {
	if h.enqueuer == nil {
		c.Error(errutil.NotImplemented("task queue is not configured", nil))
		return
	}

	info, err := h.enqueuer.Enqueue(asynq.NewTask(taskname.ReminderDispatchDue, nil))
	if err != nil {
		c.Error(errutil.Internal("failed to enqueue reminder scan", err, errutil.WithErr(err)))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
}
