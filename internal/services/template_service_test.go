package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository/memrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateForFallsBackToDefault(t *testing.T) {
	store := memrepo.New()
	ctx := context.Background()
	_, err := store.SeedTemplates(ctx, []models.EmotionTemplate{
		{EmotionName: "joy"},
		{EmotionName: models.DefaultEmotion},
	})
	require.NoError(t, err)
	svc := NewTemplateService(store)

	match, err := svc.TemplateFor(ctx, []string{"joy", "love"})
	require.NoError(t, err)
	assert.Equal(t, "joy", match.Template.EmotionName)
	assert.False(t, match.Defaulted)

	match, err = svc.TemplateFor(ctx, []string{"regret"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultEmotion, match.Template.EmotionName)
	assert.True(t, match.Defaulted)

	match, err = svc.TemplateFor(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultEmotion, match.Template.EmotionName)
}

func TestTemplateForWithoutDefault(t *testing.T) {
	_, err := NewTemplateService(memrepo.New()).TemplateFor(context.Background(), []string{"joy"})
	assert.ErrorIs(t, err, ErrExternalService)
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	store := memrepo.New()
	svc := NewTemplateService(store)
	ctx := context.Background()

	require.NoError(t, svc.SeedDefaults(ctx))
	require.NoError(t, svc.SeedDefaults(ctx))

	all, err := svc.GetAllTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(models.Emotions))
}

func TestDetectEmotions(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, []string{"peace"}, NewEmotionService(nil, 0).DetectEmotions(ctx, "hi"))
	assert.Equal(t, []string{"peace"}, NewEmotionService(stubClassifier{}, time.Second).DetectEmotions(ctx, "hi"))
	assert.Equal(t, []string{"love"}, NewEmotionService(stubClassifier{tags: []string{"love"}}, time.Second).DetectEmotions(ctx, "hi"))
}

func TestParseEmotions(t *testing.T) {
	assert.Equal(t, []string{"joy", "nostalgia"}, ParseEmotions("Joy, nostalgia."))
	assert.Equal(t, []string{"love"}, ParseEmotions("love, love, happiness"))
	assert.Empty(t, ParseEmotions("I cannot tell"))
}

type countingTemplateRepo struct {
	*memrepo.Store
	lookups int
}

func (r *countingTemplateRepo) GetTemplateByEmotion(ctx context.Context, emotion string) (*models.EmotionTemplate, error) {
	r.lookups++
	return r.Store.GetTemplateByEmotion(ctx, emotion)
}

func TestTemplateForCachesFoundTemplates(t *testing.T) {
	repo := &countingTemplateRepo{Store: memrepo.New()}
	ctx := context.Background()
	svc := NewTemplateService(repo)

	// A miss is not cached.
	_, err := svc.TemplateFor(ctx, []string{models.DefaultEmotion})
	require.Error(t, err)

	require.NoError(t, svc.SeedDefaults(ctx))
	for i := 0; i < 3; i++ {
		match, err := svc.TemplateFor(ctx, []string{"love"})
		require.NoError(t, err)
		assert.Equal(t, "love", match.Template.EmotionName)
	}
	assert.Equal(t, 2, repo.lookups)
}
