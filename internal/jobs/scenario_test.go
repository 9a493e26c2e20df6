package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type joyClassifier struct{}

func (joyClassifier) Classify(context.Context, string) ([]string, error) {
	return []string{"joy", "excitement"}, nil
}

func listIDs(t *testing.T, svc *services.CapsuleService, f *fixture, status string) []string {
	t.Helper()
	list, err := svc.ListCapsules(context.Background(), f.owner.ID, status)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID.Hex())
	}
	return ids
}

func TestTripScenario(t *testing.T) {
	f := newFixture(t, start)
	ctx := context.Background()
	svc := services.NewCapsuleService(f.store, services.NewEmotionService(joyClassifier{}, time.Second), services.NewTemplateService(f.store), nopStorage{}, f.clock.Now)
	f.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	res, err := svc.CreateCapsule(ctx, f.owner.ID, services.CreateCapsuleInput{
		Title:    "Trip",
		Message:  "fantastic sunny day",
		UnlockAt: f.clock.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"joy", "excitement"}, res.Emotions)
	require.NotNil(t, res.Template)
	assert.Equal(t, "joy", res.Template.EmotionName)

	id := res.CapsuleID.Hex()
	assert.Contains(t, listIDs(t, svc, f, "locked"), id)
	assert.NotContains(t, listIDs(t, svc, f, "unlocked"), id)

	f.clock.Advance(49 * time.Hour)
	sweep, err := NewUnlockSweeper(f.store, f.notifier, f.clock.Now, 0).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.Unlocked)

	view, err := svc.GetCapsule(ctx, f.owner.ID, id)
	require.NoError(t, err)
	assert.True(t, view.IsUnlocked)
	assert.Len(t, f.store.Notifications(models.NotificationUnlocked), 1)
	assert.NotContains(t, listIDs(t, svc, f, "locked"), id)
	assert.Contains(t, listIDs(t, svc, f, "unlocked"), id)

	title := "Trip (edited)"
	_, err = svc.UpdateCapsule(ctx, f.owner.ID, id, models.CapsuleUpdate{Title: &title})
	assert.ErrorIs(t, err, services.ErrInvalidState)
}
