package app

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mammo-vision/internal/domain/entity"
	"mammo-vision/internal/domain/port"
	apperrors "mammo-vision/internal/errors"
	"mammo-vision/internal/infrastructure/saliency"
	"mammo-vision/internal/infrastructure/storage"
)

const testSize = 224

type fakePreprocessor struct {
	err error
}

func (f *fakePreprocessor) Prepare(_ context.Context, _ []byte, inputSize int) (*entity.PreparedScan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.PreparedScan{
		SourceWidth:  640,
		SourceHeight: 480,
		Crop:         entity.CropRect{X: 10, Y: 20, Width: 300, Height: 400},
		Input:        entity.NewInputImage(inputSize),
		Display:      image.NewNRGBA(image.Rect(0, 0, inputSize, inputSize)),
	}, nil
}

type fakeQuality struct {
	score float64
	err   error
}

func (f *fakeQuality) Assess(context.Context, []byte) (*entity.QualityScore, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.QualityScore{Score: f.score}, nil
}

// fakeClassifier считает вызовы и замечает пересечение прогонов.
type fakeClassifier struct {
	probability float64
	noGradients bool
	loadErr     error

	loads, unloads, infers atomic.Int32
	active                 atomic.Int32
	overlapped             atomic.Bool
	loaded                 atomic.Bool
}

func (f *fakeClassifier) Load(context.Context) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loads.Add(1)
	f.loaded.Store(true)
	return nil
}

func (f *fakeClassifier) Unload() error {
	f.unloads.Add(1)
	f.loaded.Store(false)
	return nil
}

func (f *fakeClassifier) Loaded() bool { return f.loaded.Load() }

func (f *fakeClassifier) FeatureLayer() string { return "top_activation" }

func (f *fakeClassifier) Infer(_ context.Context, input *entity.InputImage) (*entity.Inference, error) {
	if f.active.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	defer f.active.Add(-1)
	f.infers.Add(1)
	if !f.loaded.Load() {
		return nil, errors.New("infer on unloaded model")
	}
	time.Sleep(2 * time.Millisecond)

	features := entity.NewFeatureMap(7, 7, 2)
	gradients := entity.NewFeatureMap(7, 7, 2)
	features.Set(3, 3, 0, 1)
	features.Set(3, 4, 1, 0.5)
	for i := range gradients.Data {
		gradients.Data[i] = 0.1
	}
	inf := &entity.Inference{Probability: f.probability, Features: features, Gradients: gradients}
	if f.noGradients {
		inf.Gradients = nil
	}
	return inf, nil
}

type staticFinder struct {
	box *entity.BoundingBox
}

func (f *staticFinder) LargestRegion(*entity.Heatmap, float64) (*entity.BoundingBox, bool) {
	return f.box, f.box != nil
}

type fakeVisualizer struct {
	err   error
	panic bool
	calls int
	last  port.VisualizationRequest
}

func (f *fakeVisualizer) Render(req port.VisualizationRequest) (string, error) {
	f.calls++
	f.last = req
	if f.panic {
		panic("broken canvas")
	}
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(req.OutputDir, "scan_diagnosis.jpg"), nil
}

type pipeline struct {
	svc        *AnalysisService
	classifier *fakeClassifier
	visualizer *fakeVisualizer
}

func newPipeline(p float64, finder port.RegionFinder, opts ...func(*AnalysisService)) *pipeline {
	classifier := &fakeClassifier{probability: p}
	visualizer := &fakeVisualizer{}
	svc := NewAnalysisService(
		&fakePreprocessor{},
		nil,
		classifier,
		saliency.NewGradCAM(testSize, classifier.FeatureLayer()),
		NewROIExtractor(finder, testSize),
		NewReportComposer(visualizer, "out"),
		nil,
		AnalysisOptions{InputSize: testSize, Visualize: true},
	)
	svc.newID = func() string { return "analysis-1" }
	for _, opt := range opts {
		opt(svc)
	}
	return &pipeline{svc: svc, classifier: classifier, visualizer: visualizer}
}

func analyze(t *testing.T, svc *AnalysisService) (*entity.PredictionResult, error) {
	t.Helper()
	return svc.Analyze(context.Background(), AnalysisRequest{Source: "scan.png", Data: []byte("image")})
}

func TestAnalyze_LowProbabilityBenign(t *testing.T) {
	p := newPipeline(0.0, &staticFinder{})

	result, err := analyze(t, p.svc)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, entity.LabelBenign, result.Prediction)
	require.Equal(t, entity.RiskLow, result.DiagnosticReport.RiskLevel)
	require.InDelta(t, 1.0, result.Confidence, 1e-9)
	require.Nil(t, result.BBox)
	require.Equal(t, "analysis-1", result.ID)
	require.Equal(t, entity.CropRect{X: 10, Y: 20, Width: 300, Height: 400}, result.Crop)
}

func TestAnalyze_FallbackRegion(t *testing.T) {
	p := newPipeline(0.25, &staticFinder{})

	result, err := analyze(t, p.svc)
	require.NoError(t, err)
	require.Equal(t, entity.LabelBenign, result.Prediction)
	require.Equal(t, entity.RiskLowModerate, result.DiagnosticReport.RiskLevel)
	require.NotNil(t, result.BBox)
	require.Equal(t, entity.BoundingBox{X: 56, Y: 56, Width: 112, Height: 112}, *result.BBox)
}

func TestAnalyze_HighProbability(t *testing.T) {
	box := &entity.BoundingBox{X: 90, Y: 90, Width: 60, Height: 40}
	p := newPipeline(0.97, &staticFinder{box: box})

	result, err := analyze(t, p.svc)
	require.NoError(t, err)
	require.Equal(t, entity.LabelMalignant, result.Prediction)
	require.Equal(t, entity.RiskHigh, result.DiagnosticReport.RiskLevel)
	require.Contains(t, result.DiagnosticReport.BIRADS, "5")
	require.True(t, result.HeatmapAvailable)
	require.Equal(t, *box, *result.BBox)

	require.NotNil(t, result.VisualizationPath)
	require.Equal(t, filepath.Join("out", "scan_diagnosis.jpg"), *result.VisualizationPath)
	require.NotNil(t, p.visualizer.last.Heatmap)
	require.Equal(t, testSize, p.visualizer.last.Heatmap.Width)
	require.Equal(t, result.DiagnosticReport, p.visualizer.last.Report)
}

func TestAnalyze_LoadFailure(t *testing.T) {
	p := newPipeline(0.5, &staticFinder{})
	p.classifier.loadErr = errors.New("weights not found")

	result, err := analyze(t, p.svc)
	require.Error(t, err)
	require.Nil(t, result)
	require.True(t, apperrors.HasCode(err, apperrors.ErrorResourceUnavailable))
	require.Equal(t, int32(0), p.classifier.infers.Load())
}

func TestAnalyze_UnloadsAfterEveryPrediction(t *testing.T) {
	p := newPipeline(0.4, &staticFinder{})

	for i := 0; i < 3; i++ {
		_, err := analyze(t, p.svc)
		require.NoError(t, err)
		require.False(t, p.classifier.Loaded())
	}
	require.Equal(t, int32(3), p.classifier.loads.Load())
	require.Equal(t, int32(3), p.classifier.unloads.Load())
}

func TestAnalyze_SerializesClassifier(t *testing.T) {
	p := newPipeline(0.6, &staticFinder{}, func(s *AnalysisService) {
		s.opts.Visualize = false
	})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.svc.Analyze(context.Background(), AnalysisRequest{Source: "scan.png", Data: []byte("image")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.False(t, p.classifier.overlapped.Load())
	require.Equal(t, int32(8), p.classifier.infers.Load())
}

func TestAnalyze_WithoutGradients(t *testing.T) {
	p := newPipeline(0.7, &staticFinder{box: &entity.BoundingBox{X: 1, Y: 1, Width: 5, Height: 5}})
	p.classifier.noGradients = true

	result, err := analyze(t, p.svc)
	require.NoError(t, err)
	require.False(t, result.HeatmapAvailable)
	require.Equal(t, entity.RiskModerateHigh, result.DiagnosticReport.RiskLevel)
	require.Equal(t, CenteredBox(testSize), result.BBox)
	require.Nil(t, p.visualizer.last.Heatmap)
}

func TestAnalyze_VisualizationFailureKeepsResult(t *testing.T) {
	p := newPipeline(0.55, &staticFinder{})
	p.visualizer.err = apperrors.NewVisualizationFailedError("out/scan_diagnosis.jpg", os.ErrPermission)

	result, err := analyze(t, p.svc)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Nil(t, result.VisualizationPath)

	p.visualizer.err = nil
	p.visualizer.panic = true
	result, err = analyze(t, p.svc)
	require.NoError(t, err)
	require.Nil(t, result.VisualizationPath)
}

func TestAnalyze_NoVisualization(t *testing.T) {
	p := newPipeline(0.55, &staticFinder{}, func(s *AnalysisService) {
		s.opts.Visualize = false
	})

	result, err := analyze(t, p.svc)
	require.NoError(t, err)
	require.Nil(t, result.VisualizationPath)
	require.Equal(t, 0, p.visualizer.calls)
}

func TestAnalyze_ProbabilityOutOfRange(t *testing.T) {
	p := newPipeline(1.5, &staticFinder{})

	result, err := analyze(t, p.svc)
	require.Error(t, err)
	require.Nil(t, result)
}

func TestAnalyze_InvalidInput(t *testing.T) {
	p := newPipeline(0.5, &staticFinder{})

	_, err := p.svc.Analyze(context.Background(), AnalysisRequest{Source: "empty.png"})
	require.True(t, apperrors.HasCode(err, apperrors.ErrorInvalidInput))

	p.svc.preprocessor = &fakePreprocessor{err: apperrors.NewInvalidInputError("failed to decode image", nil)}
	_, err = analyze(t, p.svc)
	require.True(t, apperrors.HasCode(err, apperrors.ErrorInvalidInput))
	require.Equal(t, int32(0), p.classifier.loads.Load())
}

func TestAnalyze_QualityGate(t *testing.T) {
	p := newPipeline(0.5, &staticFinder{}, func(s *AnalysisService) {
		s.quality = &fakeQuality{score: 30}
		s.opts.MinQuality = 50
	})

	_, err := analyze(t, p.svc)
	require.True(t, apperrors.HasCode(err, apperrors.ErrorQualityRejected))
	require.Equal(t, int32(0), p.classifier.infers.Load())

	p.svc.opts.MinQuality = 0
	result, err := analyze(t, p.svc)
	require.NoError(t, err)
	require.NotNil(t, result.Quality)
	require.Equal(t, 30.0, result.Quality.Score)
}

func TestAnalyze_QualityErrorIsNotFatal(t *testing.T) {
	p := newPipeline(0.5, &staticFinder{}, func(s *AnalysisService) {
		s.quality = &fakeQuality{err: apperrors.NewResourceUnavailableError("gocv", nil)}
	})

	result, err := analyze(t, p.svc)
	require.NoError(t, err)
	require.Nil(t, result.Quality)
}

func TestAnalyze_CacheHit(t *testing.T) {
	p := newPipeline(0.9, &staticFinder{}, func(s *AnalysisService) {
		s.cache = storage.NewMemoryResultCache(time.Hour)
	})

	first, err := analyze(t, p.svc)
	require.NoError(t, err)

	p.svc.newID = func() string { return "analysis-2" }
	second, err := analyze(t, p.svc)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int32(1), p.classifier.infers.Load())

	_, err = p.svc.Analyze(context.Background(), AnalysisRequest{Source: "other.png", Data: []byte("image")})
	require.NoError(t, err)
	require.Equal(t, int32(2), p.classifier.infers.Load())
}

func TestAnalyzeBatch(t *testing.T) {
	p := newPipeline(0.3, &staticFinder{}, func(s *AnalysisService) {
		s.opts.Visualize = false
	})

	dir := t.TempDir()
	good := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(good, []byte("image"), 0o600))
	missing := filepath.Join(dir, "missing.png")

	items := p.svc.AnalyzeBatch(context.Background(), []string{good, missing})
	require.Len(t, items, 2)

	require.Equal(t, good, items[0].Source)
	require.NotNil(t, items[0].Result)
	require.Empty(t, items[0].Error)

	require.Equal(t, missing, items[1].Source)
	require.Nil(t, items[1].Result)
	require.Contains(t, items[1].Error, string(apperrors.ErrorInvalidInput))
}

func TestAnalyze_CacheScopedByModelAndSettings(t *testing.T) {
	cache := storage.NewMemoryResultCache(time.Hour)
	withCache := func(model string) func(*AnalysisService) {
		return func(s *AnalysisService) {
			s.cache = cache
			s.opts.ModelID = model
		}
	}

	first := newPipeline(0.9, &staticFinder{}, withCache("a.pb"))
	resultA, err := analyze(t, first.svc)
	require.NoError(t, err)
	require.Equal(t, entity.LabelMalignant, resultA.Prediction)

	second := newPipeline(0.1, &staticFinder{}, withCache("b.pb"))
	second.svc.newID = func() string { return "analysis-b" }
	resultB, err := analyze(t, second.svc)
	require.NoError(t, err)
	require.Equal(t, "analysis-b", resultB.ID)
	require.Equal(t, entity.LabelBenign, resultB.Prediction)
	require.Equal(t, int32(1), second.classifier.infers.Load())

	gated := newPipeline(0.9, &staticFinder{}, withCache("a.pb"), func(s *AnalysisService) {
		s.quality = &fakeQuality{score: 30}
		s.opts.MinQuality = 50
	})
	_, err = analyze(t, gated.svc)
	require.True(t, apperrors.HasCode(err, apperrors.ErrorQualityRejected))

	elsewhere := newPipeline(0.9, &staticFinder{}, withCache("a.pb"))
	elsewhere.svc.composer = NewReportComposer(elsewhere.visualizer, "other")
	_, err = analyze(t, elsewhere.svc)
	require.NoError(t, err)
	require.Equal(t, int32(1), elsewhere.classifier.infers.Load())

	again := newPipeline(0.2, &staticFinder{}, withCache("a.pb"))
	cached, err := analyze(t, again.svc)
	require.NoError(t, err)
	require.Equal(t, resultA.ID, cached.ID)
	require.Equal(t, int32(0), again.classifier.infers.Load())
}
