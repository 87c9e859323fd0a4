package container

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"mammo-vision/config"
	app "mammo-vision/internal/application"
	"mammo-vision/internal/domain/port"
	"mammo-vision/internal/infrastructure/classifier"
	"mammo-vision/internal/infrastructure/render"
	"mammo-vision/internal/infrastructure/saliency"
	"mammo-vision/internal/infrastructure/storage"
	"mammo-vision/internal/infrastructure/vision"
)

type Container struct {
	UserService     *app.UserService
	AnalysisService *app.AnalysisService

	closers []func() error
}

// New собирает сервисы приложения по конфигурации. Если REDIS_URL пуст,
// результаты кэшируются в памяти процесса.
func New(ctx context.Context, cfg *config.Config, userRepo port.UserRepository) (*Container, error) {
	c := &Container{}

	cache, err := c.resultCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := classifier.DefaultOptions(cfg.Model.Path)
	opts.InputOp = cfg.Model.InputOp
	opts.OutputOp = cfg.Model.OutputOp
	opts.FeatureOp = cfg.Model.FeatureOp
	model := classifier.NewTFClassifier(opts)

	size := cfg.Pipeline.InputSize
	analysis := app.NewAnalysisService(
		vision.NewPreprocessor(),
		vision.NewQualityInspector(),
		model,
		saliency.NewGradCAM(size, model.FeatureLayer()),
		app.NewROIExtractor(vision.NewContourRegionFinder(), size),
		app.NewReportComposer(render.NewPanelRenderer(), cfg.Pipeline.VisualizationDir),
		cache,
		app.AnalysisOptions{
			InputSize:  size,
			Visualize:  cfg.Pipeline.GenerateVisualization,
			MinQuality: cfg.Pipeline.MinQualityScore,
			ModelID:    ModelID(opts),
		},
	)

	c.UserService = app.NewUserService(userRepo)
	c.AnalysisService = analysis
	return c, nil
}

// ModelID отпечаток классификатора для ключа кэша результатов
func ModelID(opts classifier.Options) string {
	return strings.Join([]string{opts.ModelPath, opts.InputOp, opts.OutputOp, opts.FeatureOp}, "|")
}

func (c *Container) resultCache(ctx context.Context, cfg *config.Config) (port.ResultCache, error) {
	if cfg.Cache.RedisURL == "" {
		log.WithField("ttl", cfg.Cache.TTL).Info("using in-memory result cache")
		return storage.NewMemoryResultCache(cfg.Cache.TTL), nil
	}

	redisCache, err := storage.NewRedisResultCache(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}
	c.closers = append(c.closers, redisCache.Close)
	log.WithField("ttl", cfg.Cache.TTL).Info("using redis result cache")
	return redisCache, nil
}

// Close освобождает внешние подключения
func (c *Container) Close() error {
	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
