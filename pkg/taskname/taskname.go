package taskname

const (
	// Reminder tasks
	ReminderDispatchDue = "reminder:dispatch_due"
)
