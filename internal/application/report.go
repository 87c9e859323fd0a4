package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"mammo-vision/internal/domain/entity"
	"mammo-vision/internal/domain/port"
	"mammo-vision/internal/domain/risk"
)

// ReportComposer собирает заключение и, если задан визуализатор, картинку.
type ReportComposer struct {
	visualizer port.Visualizer
	outputDir  string
}

// NewReportComposer создаёт сборщик; visualizer может быть nil.
func NewReportComposer(visualizer port.Visualizer, outputDir string) *ReportComposer {
	return &ReportComposer{visualizer: visualizer, outputDir: outputDir}
}

// Report заключение по вероятности злокачественности.
func (c *ReportComposer) Report(p float64) entity.DiagnosticReport {
	return risk.Assess(p)
}

// Visualize рисует визуализацию. Ошибка только логируется: результат
// анализа возвращается и без картинки.
func (c *ReportComposer) Visualize(req port.VisualizationRequest) (path *string) {
	if c.visualizer == nil {
		return nil
	}
	if req.OutputDir == "" {
		req.OutputDir = c.outputDir
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("source", req.SourcePath).Warn(fmt.Sprintf("visualization panicked: %v", r))
			path = nil
		}
	}()

	out, err := c.visualizer.Render(req)
	if err != nil {
		log.WithError(err).WithField("source", req.SourcePath).Warn("visualization failed")
		return nil
	}
	log.WithField("path", out).Info("visualization saved")
	return &out
}
