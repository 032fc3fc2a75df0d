package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"cnec-platform/pkg/taskname"
	"cnec-platform/services/application"
	"cnec-platform/services/campaign"
	"cnec-platform/services/deadline"
	"cnec-platform/services/ledger"
	"cnec-platform/services/notification"
	"cnec-platform/services/submission"
	"cnec-platform/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type publisherMock struct {
	events []notification.Event
}

func (p *publisherMock) Publish(ctx context.Context, ev notification.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func TestHandleDispatchDue(t *testing.T) {
	db := testutil.NewTestDB(t,
		&campaign.Campaign{},
		&application.Application{},
		&application.SlotPosting{},
		&submission.VideoSubmission{},
		&ledger.PointTransaction{},
		&ledger.Account{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	led := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})
	camps := campaign.NewService(campaign.ServiceParams{DB: db})
	apps := application.NewService(application.ServiceParams{DB: db, Node: node, Campaigns: camps, Ledger: led})
	subs := submission.NewService(submission.ServiceParams{DB: db, Node: node})
	deadlines := deadline.NewService(deadline.ServiceParams{DB: db, Campaigns: camps, Apps: apps, Submissions: subs})

	missed := time.Now().Add(-2 * time.Hour).UTC().Truncate(time.Second)
	c := &campaign.Campaign{
		CampaignID: "camp-1",
		Title:      "Fall Push",
		Kind:       campaign.KindStandard,
		Status:     campaign.StatusActive,
		Deadlines: datatypes.NewJSONType(campaign.DeadlineMap{
			campaign.DeadlineKey(campaign.SlotMain, campaign.DeadlineVideo): missed,
		}),
	}
	require.NoError(t, db.Create(c).Error)

	ctx := context.Background()
	app, err := apps.Create(ctx, application.CreateParams{CampaignID: c.CampaignID, UserID: "creator-1"})
	require.NoError(t, err)
	_, err = apps.Decide(ctx, app.ID, application.DecisionApprove, "")
	require.NoError(t, err)

	pub := &publisherMock{}
	h := NewHandler(HandlerParams{Deadlines: deadlines, Publisher: pub})

	err = h.HandleDispatchDue(ctx, asynq.NewTask(taskname.ReminderDispatchDue, nil))
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	require.Equal(t, notification.EventSlotReminderDue, ev.Type)
	require.Equal(t, app.ID, ev.ApplicationID)
	require.Equal(t, "creator-1", ev.UserID)
	require.Equal(t, string(campaign.SlotMain), ev.Slot)
	require.True(t, ev.Deadline.Equal(missed))
}
