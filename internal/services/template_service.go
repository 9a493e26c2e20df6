package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

const (
	templateCacheSize = 64
	templateCacheTTL  = 10 * time.Minute
)

var (
	templateCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "time_capsule_template_cache_hits_total",
		Help: "Emotion template lookups served from the cache",
	})
	templateCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "time_capsule_template_cache_misses_total",
		Help: "Emotion template lookups that went to the store",
	})
)

// TemplateMatch is the result of a template lookup. Defaulted is true when the
// primary emotion had no template and the default emotion's template was used.
type TemplateMatch struct {
	Template  *models.EmotionTemplate
	Defaulted bool
}

type TemplateService struct {
	repo  repository.TemplateRepository
	cache *expirable.LRU[string, *models.EmotionTemplate]
}

func NewTemplateService(repo repository.TemplateRepository) *TemplateService {
	return &TemplateService{
		repo:  repo,
		cache: expirable.NewLRU[string, *models.EmotionTemplate](templateCacheSize, nil, templateCacheTTL),
	}
}

// byEmotion caches found templates only, so a template seeded later is picked up.
func (s *TemplateService) byEmotion(ctx context.Context, emotion string) (*models.EmotionTemplate, error) {
	if t, ok := s.cache.Get(emotion); ok {
		templateCacheHits.Inc()
		return t, nil
	}
	templateCacheMisses.Inc()

	t, err := s.repo.GetTemplateByEmotion(ctx, emotion)
	if err != nil {
		return nil, err
	}
	s.cache.Add(emotion, t)
	return t, nil
}

// TemplateFor picks the template of the first tag, falling back to the default emotion.
func (s *TemplateService) TemplateFor(ctx context.Context, tags []string) (TemplateMatch, error) {
	primary := models.DefaultEmotion
	if len(tags) > 0 && tags[0] != "" {
		primary = tags[0]
	}

	t, err := s.byEmotion(ctx, primary)
	if err == nil {
		return TemplateMatch{Template: t}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return TemplateMatch{}, fmt.Errorf("%w: template lookup: %v", ErrExternalService, err)
	}
	if primary == models.DefaultEmotion {
		return TemplateMatch{}, fmt.Errorf("%w: no template for default emotion %q", ErrExternalService, models.DefaultEmotion)
	}

	t, err = s.byEmotion(ctx, models.DefaultEmotion)
	if err != nil {
		return TemplateMatch{}, fmt.Errorf("%w: default template lookup: %v", ErrExternalService, err)
	}

	logrus.WithField("emotion", primary).Debug("No template for emotion, using default")
	return TemplateMatch{Template: t, Defaulted: true}, nil
}

// GetAllTemplates returns all available templates
func (s *TemplateService) GetAllTemplates(ctx context.Context) ([]models.EmotionTemplate, error) {
	return s.repo.GetAllTemplates(ctx)
}

// SeedDefaults stores the built-in template of every known emotion that is still missing.
func (s *TemplateService) SeedDefaults(ctx context.Context) error {
	n, err := s.repo.SeedTemplates(ctx, DefaultTemplates())
	if err != nil {
		return fmt.Errorf("failed to seed templates: %w", err)
	}
	if n > 0 {
		s.cache.Purge()
		logrus.WithField("count", n).Info("Seeded emotion templates")
	}
	return nil
}

// DefaultTemplates is one presentation template per emotion in models.Emotions.
func DefaultTemplates() []models.EmotionTemplate {
	data := map[string]models.TemplateData{
		"joy":        {Theme: "sunshine", PrimaryColor: "#FFC107", BackgroundColor: "#FFF8E1", Icon: "sun", Greeting: "A bright moment is waiting for you"},
		"sadness":    {Theme: "rain", PrimaryColor: "#5C6BC0", BackgroundColor: "#E8EAF6", Icon: "cloud-rain", Greeting: "A gentle memory from the past"},
		"love":       {Theme: "romantic", PrimaryColor: "#E91E63", BackgroundColor: "#FCE4EC", Icon: "heart", Greeting: "Something full of love"},
		"nostalgia":  {Theme: "vintage", PrimaryColor: "#8D6E63", BackgroundColor: "#EFEBE9", Icon: "camera-retro", Greeting: "Remember this?"},
		"pride":      {Theme: "achievement", PrimaryColor: "#FF9800", BackgroundColor: "#FFF3E0", Icon: "trophy", Greeting: "Look how far you have come"},
		"regret":     {Theme: "reflective", PrimaryColor: "#78909C", BackgroundColor: "#ECEFF1", Icon: "feather", Greeting: "A lesson you kept for later"},
		"excitement": {Theme: "celebration", PrimaryColor: "#F4511E", BackgroundColor: "#FBE9E7", Icon: "confetti", Greeting: "Get ready for this one"},
		"peace":      {Theme: "calm", PrimaryColor: "#26A69A", BackgroundColor: "#E0F2F1", Icon: "leaf", Greeting: "A quiet moment kept for you"},
		"anger":      {Theme: "storm", PrimaryColor: "#D32F2F", BackgroundColor: "#FFEBEE", Icon: "bolt", Greeting: "Something you needed to say"},
		"fear":       {Theme: "night", PrimaryColor: "#512DA8", BackgroundColor: "#EDE7F6", Icon: "moon", Greeting: "You made it through"},
		"surprise":   {Theme: "party", PrimaryColor: "#AB47BC", BackgroundColor: "#F3E5F5", Icon: "gift", Greeting: "Surprise!"},
		"disgust":    {Theme: "casual", PrimaryColor: "#689F38", BackgroundColor: "#F1F8E9", Icon: "face-grimace", Greeting: "An honest moment"},
	}

	templates := make([]models.EmotionTemplate, 0, len(models.Emotions))
	for _, emotion := range models.Emotions {
		templates = append(templates, models.EmotionTemplate{EmotionName: emotion, Data: data[emotion]})
	}
	return templates
}
