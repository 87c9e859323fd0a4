package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mammo-vision/internal/domain/entity"
	"mammo-vision/internal/domain/port"
	apperrors "mammo-vision/internal/errors"
)

// AnalysisOptions параметры конвейера
type AnalysisOptions struct {
	InputSize  int     // сторона входа классификатора
	Visualize  bool    // рисовать ли трёхпанельную визуализацию
	MinQuality float64 // минимальная оценка качества, 0 отключает проверку
	// ModelID отпечаток модели (путь и имена операций). Входит в ключ кэша,
	// поэтому результаты разных моделей не смешиваются в общем Redis.
	ModelID string
}

// AnalysisRequest снимок на анализ
type AnalysisRequest struct {
	Source string // имя исходного файла, от него строится имя визуализации
	Data   []byte
}

// AnalysisService объяснимый конвейер: ткань, контраст, классификатор,
// Grad-CAM, область интереса, риск, заключение.
type AnalysisService struct {
	preprocessor port.ScanPreprocessor
	quality      port.QualityInspector
	classifier   port.Classifier
	saliency     port.SaliencyMapper
	roi          *ROIExtractor
	composer     *ReportComposer
	cache        port.ResultCache
	opts         AnalysisOptions

	// Классификатор общий на процесс: загрузка, прогон и выгрузка идут
	// строго под этой блокировкой.
	mu    sync.Mutex
	newID func() string
	now   func() time.Time
}

// NewAnalysisService создаёт конвейер. quality и cache могут быть nil.
func NewAnalysisService(
	preprocessor port.ScanPreprocessor,
	quality port.QualityInspector,
	classifier port.Classifier,
	saliency port.SaliencyMapper,
	roi *ROIExtractor,
	composer *ReportComposer,
	cache port.ResultCache,
	opts AnalysisOptions,
) *AnalysisService {
	return &AnalysisService{
		preprocessor: preprocessor,
		quality:      quality,
		classifier:   classifier,
		saliency:     saliency,
		roi:          roi,
		composer:     composer,
		cache:        cache,
		opts:         opts,
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// AnalyzeFile читает файл и запускает анализ.
func (s *AnalysisService) AnalyzeFile(ctx context.Context, path string) (*entity.PredictionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("failed to read image", err)
	}
	return s.Analyze(ctx, AnalysisRequest{Source: path, Data: data})
}

// AnalyzeBatch анализирует файлы по очереди; ошибка одного файла не
// прерывает пакет.
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, paths []string) []entity.BatchItem {
	items := make([]entity.BatchItem, 0, len(paths))
	for _, path := range paths {
		item := entity.BatchItem{Source: path}
		result, err := s.AnalyzeFile(ctx, path)
		if err != nil {
			log.WithError(err).WithField("source", path).Error("analysis failed")
			item.Error = err.Error()
		} else {
			item.Result = result
		}
		items = append(items, item)
	}
	return items
}

// Analyze прогоняет снимок через конвейер. Вероятность и риск всегда
// получены из выхода классификатора, иначе запрос завершается ошибкой.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*entity.PredictionResult, error) {
	if len(req.Data) == 0 {
		return nil, apperrors.NewInvalidInputError("empty image", nil)
	}

	key := s.cacheKey(req)
	if cached := s.cached(ctx, key); cached != nil {
		return cached, nil
	}

	quality, err := s.checkQuality(ctx, req.Data)
	if err != nil {
		return nil, err
	}

	scan, err := s.preprocessor.Prepare(ctx, req.Data, s.opts.InputSize)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	inference, err := s.infer(ctx, scan.Input)
	if err != nil {
		return nil, err
	}
	p := inference.Probability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return nil, fmt.Errorf("classifier returned probability %v outside [0,1]", p)
	}

	heatmap := s.heatmap(inference)
	bbox := s.roi.Extract(heatmap, p)
	report := s.composer.Report(p)

	result := &entity.PredictionResult{
		ID:               s.newID(),
		Source:           req.Source,
		Success:          true,
		Prediction:       report.PrimaryDiagnosis,
		Probability:      p,
		Confidence:       report.Confidence,
		DiagnosticReport: report,
		BBox:             bbox,
		Crop:             scan.Crop,
		HeatmapAvailable: heatmap != nil,
		Quality:          quality,
		CreatedAt:        s.now(),
	}

	if s.opts.Visualize {
		result.VisualizationPath = s.composer.Visualize(port.VisualizationRequest{
			SourcePath: req.Source,
			Scan:       scan,
			Heatmap:    heatmap,
			BBox:       bbox,
			Report:     report,
		})
	}

	log.WithFields(log.Fields{
		"id":          result.ID,
		"source":      req.Source,
		"prediction":  result.Prediction,
		"probability": fmt.Sprintf("%.4f", p),
		"risk":        report.RiskLevel,
		"bbox":        bbox,
	}).Info("analysis completed")

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, result); err != nil {
			log.WithError(err).Warn("failed to cache result")
		}
	}
	return result, nil
}

// infer загружает классификатор, делает прогон и выгружает его. Всё под
// одной блокировкой, так что выгрузка не может совпасть с чужим прогоном.
func (s *AnalysisService) infer(ctx context.Context, input *entity.InputImage) (*entity.Inference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.classifier.Load(ctx); err != nil {
		if apperrors.HasCode(err, apperrors.ErrorResourceUnavailable) {
			return nil, err
		}
		return nil, apperrors.NewResourceUnavailableError("classifier", err)
	}
	defer func() {
		if err := s.classifier.Unload(); err != nil {
			log.WithError(err).Warn("failed to unload classifier")
		}
	}()

	inference, err := s.classifier.Infer(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("classifier inference: %w", err)
	}
	if inference == nil {
		return nil, errors.New("classifier returned no result")
	}
	return inference, nil
}

func (s *AnalysisService) heatmap(inference *entity.Inference) *entity.Heatmap {
	if s.saliency == nil {
		return nil
	}
	heatmap, err := s.saliency.Compute(inference.Features, inference.Gradients)
	if err != nil {
		log.WithError(err).WithField("layer", s.classifier.FeatureLayer()).Warn("heatmap unavailable")
		return nil
	}
	return heatmap
}

func (s *AnalysisService) checkQuality(ctx context.Context, data []byte) (*entity.QualityScore, error) {
	if s.quality == nil {
		return nil, nil
	}
	q, err := s.quality.Assess(ctx, data)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrorInvalidInput) {
			return nil, err
		}
		log.WithError(err).Warn("quality assessment skipped")
		return nil, nil
	}
	log.WithField("score", q.Score).Debug("quality assessed")
	if s.opts.MinQuality > 0 && q.Score < s.opts.MinQuality {
		return nil, apperrors.NewQualityRejectedError(q.Score, s.opts.MinQuality)
	}
	return q, nil
}

func (s *AnalysisService) cached(ctx context.Context, key string) *entity.PredictionResult {
	if s.cache == nil {
		return nil
	}
	result, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warn("result cache lookup failed")
		return nil
	}
	if !ok {
		return nil
	}
	log.WithField("id", result.ID).Debug("result served from cache")
	return result
}

// cacheKey ключ по содержимому снимка и всему, от чего зависит результат:
// модель, размер входа, порог качества, каталог и имя визуализации.
func (s *AnalysisService) cacheKey(req AnalysisRequest) string {
	h := sha256.New()
	h.Write(req.Data)
	for _, part := range []string{
		s.opts.ModelID,
		strconv.Itoa(s.opts.InputSize),
		strconv.FormatFloat(s.opts.MinQuality, 'g', -1, 64),
		strconv.FormatBool(s.opts.Visualize),
		s.composer.outputDir,
		filepath.Base(req.Source),
	} {
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
