package application

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

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
	apps        *Service
	submissions *submission.Service
	ledger      *ledger.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&campaign.Campaign{},
		&Application{},
		&SlotPosting{},
		&submission.VideoSubmission{},
		&ledger.PointTransaction{},
		&ledger.Account{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	led := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})
	camps := campaign.NewService(campaign.ServiceParams{DB: db})
	apps := NewService(ServiceParams{DB: db, Node: node, Campaigns: camps, Ledger: led})
	subs := submission.NewService(submission.ServiceParams{
		DB:       db,
		Node:     node,
		Gate:     AsGate(apps),
		Observer: AsObserver(apps),
	})

	return &fixture{db: db, apps: apps, submissions: subs, ledger: led}
}

func (f *fixture) seedCampaign(t *testing.T, kind campaign.Kind, reward int64) *campaign.Campaign {
	t.Helper()

	c := &campaign.Campaign{
		CampaignID:   "camp-" + string(kind),
		Title:        "Spring Launch",
		Brand:        "Acme",
		Kind:         kind,
		RewardAmount: reward,
		Status:       campaign.StatusActive,
	}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func (f *fixture) approvedApplication(t *testing.T, c *campaign.Campaign, userID string) *Application {
	t.Helper()
	ctx := context.Background()

	app, err := f.apps.Create(ctx, CreateParams{CampaignID: c.CampaignID, UserID: userID})
	require.NoError(t, err)

	app, err = f.apps.Decide(ctx, app.ID, DecisionApprove, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, app.Status)
	return app
}

// deliverSlot walks one slot through submit, approve and posting.
func (f *fixture) deliverSlot(t *testing.T, appID string, slot campaign.Slot) {
	t.Helper()
	ctx := context.Background()

	sub, err := f.submissions.Submit(ctx, submission.SubmitParams{
		ApplicationID: appID,
		Slot:          slot,
		FileReference: "videos/final.mp4",
	})
	require.NoError(t, err)

	_, err = f.submissions.Approve(ctx, sub.ID)
	require.NoError(t, err)

	_, err = f.apps.RecordPosting(ctx, appID, slot, "https://sns.example/post")
	require.NoError(t, err)
}

func TestCreateRejectsDuplicateApplication(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindStandard, 5000)
	ctx := context.Background()

	_, err := f.apps.Create(ctx, CreateParams{CampaignID: c.CampaignID, UserID: "creator-1"})
	require.NoError(t, err)

	_, err = f.apps.Create(ctx, CreateParams{CampaignID: c.CampaignID, UserID: "creator-1"})
	require.ErrorIs(t, err, ErrAlreadyApplied)
}

func TestCreateRejectsInactiveCampaign(t *testing.T) {
	f := newFixture(t)

	c := &campaign.Campaign{
		CampaignID: "camp-draft",
		Title:      "Unpublished",
		Status:     campaign.StatusDraft,
	}
	require.NoError(t, f.db.Create(c).Error)

	_, err := f.apps.Create(context.Background(), CreateParams{CampaignID: c.CampaignID, UserID: "creator-1"})
	require.Error(t, err)
}

func TestDecideOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindStandard, 5000)
	ctx := context.Background()

	app, err := f.apps.Create(ctx, CreateParams{CampaignID: c.CampaignID, UserID: "creator-1"})
	require.NoError(t, err)

	_, err = f.apps.Decide(ctx, app.ID, DecisionApprove, "")
	require.NoError(t, err)

	_, err = f.apps.Decide(ctx, app.ID, DecisionReject, "changed my mind")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectIsTerminal(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindStandard, 5000)
	ctx := context.Background()

	app, err := f.apps.Create(ctx, CreateParams{CampaignID: c.CampaignID, UserID: "creator-1"})
	require.NoError(t, err)

	app, err = f.apps.Decide(ctx, app.ID, DecisionReject, "not a fit")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, app.Status)
	require.Equal(t, "not a fit", app.RejectReason)

	_, err = f.submissions.Submit(ctx, submission.SubmitParams{
		ApplicationID: app.ID,
		Slot:          campaign.SlotMain,
		FileReference: "videos/raw.mp4",
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStandardFlowToCompletion(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindStandard, 5000)
	ctx := context.Background()

	app := f.approvedApplication(t, c, "creator-1")

	sub, err := f.submissions.Submit(ctx, submission.SubmitParams{
		ApplicationID: app.ID,
		Slot:          campaign.SlotMain,
		FileReference: "videos/v1.mp4",
	})
	require.NoError(t, err)

	got, err := f.apps.Get(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProduction, got.Status)

	_, err = f.submissions.Approve(ctx, sub.ID)
	require.NoError(t, err)

	got, err = f.apps.Get(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, got.Status)

	_, err = f.apps.RecordPosting(ctx, app.ID, campaign.SlotMain, "https://sns.example/post")
	require.NoError(t, err)

	got, err = f.apps.Get(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	balance, err := f.ledger.Balance(ctx, "creator-1")
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance)
}

func TestRevisionCycleRoundTrip(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindStandard, 5000)
	ctx := context.Background()

	app := f.approvedApplication(t, c, "creator-1")

	v1, err := f.submissions.Submit(ctx, submission.SubmitParams{
		ApplicationID: app.ID,
		Slot:          campaign.SlotMain,
		FileReference: "videos/v1.mp4",
	})
	require.NoError(t, err)

	_, err = f.submissions.RequestRevision(ctx, v1.ID, "logo is missing")
	require.NoError(t, err)

	got, err := f.apps.Get(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRevisionCycle, got.Status)

	_, err = f.submissions.Submit(ctx, submission.SubmitParams{
		ApplicationID: app.ID,
		Slot:          campaign.SlotMain,
		FileReference: "videos/v2.mp4",
	})
	require.NoError(t, err)

	got, err = f.apps.Get(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProduction, got.Status)
}

func TestChallengeCompletionRequiresAllFourSlots(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindFourWeekChallenge, 20000)
	ctx := context.Background()

	app := f.approvedApplication(t, c, "creator-1")

	for _, slot := range []campaign.Slot{campaign.SlotWeek1, campaign.SlotWeek2, campaign.SlotWeek3} {
		f.deliverSlot(t, app.ID, slot)

		got, err := f.apps.Get(ctx, app.ID)
		require.NoError(t, err)
		require.NotEqual(t, StatusCompleted, got.Status)
	}

	balance, err := f.ledger.Balance(ctx, "creator-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)

	f.deliverSlot(t, app.ID, campaign.SlotWeek4)

	got, err := f.apps.Get(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)

	balance, err = f.ledger.Balance(ctx, "creator-1")
	require.NoError(t, err)
	require.Equal(t, int64(20000), balance)
}

func TestRewardCreditedExactlyOnce(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindStandard, 5000)
	ctx := context.Background()

	app := f.approvedApplication(t, c, "creator-1")
	f.deliverSlot(t, app.ID, campaign.SlotMain)

	// Redundant recomputations must not pay the reward again.
	require.NoError(t, f.apps.SubmissionChanged(ctx, app.ID))
	require.NoError(t, f.apps.SubmissionChanged(ctx, app.ID))

	balance, err := f.ledger.Balance(ctx, "creator-1")
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance)

	entries, err := f.ledger.Transactions(ctx, "creator-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ledger.KindEarn, entries[0].Kind)
	require.NotNil(t, entries[0].ApplicationID)
	require.Equal(t, app.ID, *entries[0].ApplicationID)
}

func TestRecordPostingRequiresApprovedSubmission(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindStandard, 5000)
	ctx := context.Background()

	app := f.approvedApplication(t, c, "creator-1")

	_, err := f.apps.RecordPosting(ctx, app.ID, campaign.SlotMain, "https://sns.example/post")
	require.Error(t, err)

	sub, err := f.submissions.Submit(ctx, submission.SubmitParams{
		ApplicationID: app.ID,
		Slot:          campaign.SlotMain,
		FileReference: "videos/v1.mp4",
	})
	require.NoError(t, err)

	_, err = f.apps.RecordPosting(ctx, app.ID, campaign.SlotMain, "https://sns.example/post")
	require.Error(t, err)

	_, err = f.submissions.Approve(ctx, sub.ID)
	require.NoError(t, err)

	_, err = f.apps.RecordPosting(ctx, app.ID, campaign.SlotMain, "https://sns.example/post")
	require.NoError(t, err)
}

func TestRecordPostingIsIdempotentPerSlot(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindStandard, 5000)
	ctx := context.Background()

	app := f.approvedApplication(t, c, "creator-1")
	f.deliverSlot(t, app.ID, campaign.SlotMain)

	again, err := f.apps.RecordPosting(ctx, app.ID, campaign.SlotMain, "https://sns.example/other")
	require.NoError(t, err)
	require.Equal(t, "https://sns.example/post", again.PostURL)

	var count int64
	require.NoError(t, f.db.Model(&SlotPosting{}).Where("application_id = ?", app.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSubmitRejectsUnknownSlotForKind(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindStandard, 5000)

	app := f.approvedApplication(t, c, "creator-1")

	_, err := f.submissions.Submit(context.Background(), submission.SubmitParams{
		ApplicationID: app.ID,
		Slot:          campaign.SlotWeek1,
		FileReference: "videos/raw.mp4",
	})
	require.Error(t, err)
}

func TestOverrideDeadlinePersists(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindStandard, 5000)
	ctx := context.Background()

	app := f.approvedApplication(t, c, "creator-1")

	at := app.CreatedAt.AddDate(0, 0, 14)
	updated, err := f.apps.OverrideDeadline(ctx, app.ID, campaign.SlotMain, campaign.DeadlineVideo, at)
	require.NoError(t, err)

	got := updated.OverrideDeadline(campaign.SlotMain, campaign.DeadlineVideo)
	require.NotNil(t, got)
	require.True(t, got.Equal(at))

	reloaded, err := f.apps.Get(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.OverrideDeadline(campaign.SlotMain, campaign.DeadlineVideo))
}

func TestDeadlineOverridesSurviveJSONRoundTrip(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, campaign.KindFourWeekChallenge, 0)
	ctx := context.Background()

	app := f.approvedApplication(t, c, "creator-1")

	at := app.CreatedAt.AddDate(0, 0, 7)
	_, err := f.apps.OverrideDeadline(ctx, app.ID, campaign.SlotWeek2, campaign.DeadlineSNS, at)
	require.NoError(t, err)

	var raw Application
	require.NoError(t, f.db.Where("id = ?", app.ID).First(&raw).Error)

	overrides := raw.DeadlineOverrides.Data()
	require.NotNil(t, overrides.For(campaign.SlotWeek2, campaign.DeadlineSNS))
	require.Nil(t, overrides.For(campaign.SlotWeek2, campaign.DeadlineVideo))
	require.IsType(t, datatypes.JSONType[campaign.DeadlineMap]{}, raw.DeadlineOverrides)
}
