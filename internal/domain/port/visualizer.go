package port

import (
	"mammo-vision/internal/domain/entity"
)

// VisualizationRequest всё, что нужно для трёхпанельной визуализации.
type VisualizationRequest struct {
	SourcePath string              // имя исходного файла, от него строится имя результата
	OutputDir  string              // каталог для записи
	Scan       *entity.PreparedScan
	Heatmap    *entity.Heatmap     // может быть nil
	BBox       *entity.BoundingBox // может быть nil
	Report     entity.DiagnosticReport
}

// Visualizer рисует исходник, наложение тепловой карты и область интереса.
type Visualizer interface {
	// Render сохраняет визуализацию и возвращает путь к файлу
	Render(req VisualizationRequest) (string, error)
}
