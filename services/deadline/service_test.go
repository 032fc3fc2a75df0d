package deadline

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cnec-platform/services/application"
	"cnec-platform/services/campaign"
	"cnec-platform/services/ledger"
	"cnec-platform/services/submission"
	"cnec-platform/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	db          *gorm.DB
	deadlines   *Service
	apps        *application.Service
	submissions *submission.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

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
	subs := submission.NewService(submission.ServiceParams{
		DB:       db,
		Node:     node,
		Gate:     application.AsGate(apps),
		Observer: application.AsObserver(apps),
	})
	svc := NewService(ServiceParams{DB: db, Campaigns: camps, Apps: apps, Submissions: subs})

	return &fixture{db: db, deadlines: svc, apps: apps, submissions: subs}
}

func (f *fixture) seed(t *testing.T, videoDeadline time.Time) (*campaign.Campaign, *application.Application) {
	t.Helper()
	ctx := context.Background()

	c := &campaign.Campaign{
		CampaignID: "camp-1",
		Title:      "Fall Push",
		Kind:       campaign.KindStandard,
		Status:     campaign.StatusActive,
		Deadlines: datatypes.NewJSONType(campaign.DeadlineMap{
			campaign.DeadlineKey(campaign.SlotMain, campaign.DeadlineVideo): videoDeadline,
		}),
	}
	require.NoError(t, f.db.Create(c).Error)

	app, err := f.apps.Create(ctx, application.CreateParams{CampaignID: c.CampaignID, UserID: "creator-1"})
	require.NoError(t, err)
	app, err = f.apps.Decide(ctx, app.ID, application.DecisionApprove, "")
	require.NoError(t, err)

	return c, app
}

func TestDeadlinesListsResolvedEntries(t *testing.T) {
	f := newFixture(t)
	at := time.Now().AddDate(0, 0, 14).UTC().Truncate(time.Second)
	_, app := f.seed(t, at)

	entries, err := f.deadlines.Deadlines(context.Background(), app.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, campaign.SlotMain, entries[0].Slot)
	require.Equal(t, campaign.DeadlineVideo, entries[0].Kind)
	require.Equal(t, SourceCampaignDefault, entries[0].Source)
	require.True(t, entries[0].At.Equal(at))
}

func TestDeadlinesReflectOverrides(t *testing.T) {
	f := newFixture(t)
	at := time.Now().AddDate(0, 0, 14).UTC().Truncate(time.Second)
	_, app := f.seed(t, at)

	extended := at.AddDate(0, 0, 7)
	_, err := f.apps.OverrideDeadline(context.Background(), app.ID, campaign.SlotMain, campaign.DeadlineVideo, extended)
	require.NoError(t, err)

	entries, err := f.deadlines.Deadlines(context.Background(), app.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, SourceOverride, entries[0].Source)
	require.True(t, entries[0].At.Equal(extended))
}

func TestListOverdueFindsMissedSlots(t *testing.T) {
	f := newFixture(t)
	at := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	_, app := f.seed(t, at)

	overdue, err := f.deadlines.ListOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, app.ID, overdue[0].ApplicationID)
	require.Equal(t, "creator-1", overdue[0].UserID)
	require.Equal(t, campaign.SlotMain, overdue[0].Slot)
}

func TestListOverdueIgnoresApprovedSlots(t *testing.T) {
	f := newFixture(t)
	at := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	_, app := f.seed(t, at)
	ctx := context.Background()

	sub, err := f.submissions.Submit(ctx, submission.SubmitParams{
		ApplicationID: app.ID,
		Slot:          campaign.SlotMain,
		FileReference: "videos/final.mp4",
	})
	require.NoError(t, err)

	// Still overdue while the upload awaits review.
	overdue, err := f.deadlines.ListOverdue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	_, err = f.submissions.Approve(ctx, sub.ID)
	require.NoError(t, err)

	overdue, err = f.deadlines.ListOverdue(ctx, time.Now())
	require.NoError(t, err)
	require.Empty(t, overdue)
}

func TestListOverdueIgnoresFutureDeadlines(t *testing.T) {
	f := newFixture(t)
	at := time.Now().AddDate(0, 0, 14).UTC().Truncate(time.Second)
	f.seed(t, at)

	overdue, err := f.deadlines.ListOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	require.Empty(t, overdue)
}

func TestListOverdueIgnoresPendingApplications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := &campaign.Campaign{
		CampaignID: "camp-1",
		Title:      "Fall Push",
		Kind:       campaign.KindStandard,
		Status:     campaign.StatusActive,
		Deadlines: datatypes.NewJSONType(campaign.DeadlineMap{
			campaign.DeadlineKey(campaign.SlotMain, campaign.DeadlineVideo): time.Now().Add(-time.Hour),
		}),
	}
	require.NoError(t, f.db.Create(c).Error)

	_, err := f.apps.Create(ctx, application.CreateParams{CampaignID: c.CampaignID, UserID: "creator-1"})
	require.NoError(t, err)

	overdue, err := f.deadlines.ListOverdue(ctx, time.Now())
	require.NoError(t, err)
	require.Empty(t, overdue)
}
