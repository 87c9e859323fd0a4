// Package render собирает трёхпанельную визуализацию: исходная обрезка,
// наложение тепловой карты и рамка подозрительной области.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"mammo-vision/internal/domain/entity"
	"mammo-vision/internal/domain/port"
	apperrors "mammo-vision/internal/errors"
)

const (
	margin     = 12
	titleH     = 24
	lineH      = 16
	footerRows = 5
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	black = color.NRGBA{A: 255}
	paper = color.NRGBA{R: 245, G: 222, B: 179, A: 255}
)

// PanelRenderer рисует визуализацию и пишет её в файл.
type PanelRenderer struct {
	Alpha       float64 // прозрачность тепловой карты
	BoxWidth    int     // толщина рамки
	CrossRadius int     // полудлина перекрестья
	JPEGQuality int
}

// NewPanelRenderer создаёт рендерер с настройками по умолчанию.
func NewPanelRenderer() *PanelRenderer {
	return &PanelRenderer{
		Alpha:       0.5,
		BoxWidth:    3,
		CrossRadius: 10,
		JPEGQuality: 95,
	}
}

// Render сохраняет визуализацию в req.OutputDir. Если каталог недоступен на
// запись, файл пишется в текущий каталог.
func (r *PanelRenderer) Render(req port.VisualizationRequest) (string, error) {
	img, err := r.Compose(req)
	if err != nil {
		return "", apperrors.NewVisualizationFailedError("", err)
	}

	name := OutputName(req.SourcePath)
	path := filepath.Join(req.OutputDir, name)
	err = r.save(img, path)
	if err != nil && writeDenied(err) {
		log.WithError(err).WithField("dir", req.OutputDir).Warn("output dir is not writable, using working directory")
		path, _ = filepath.Abs(name)
		err = r.save(img, path)
	}
	if err != nil {
		return "", apperrors.NewVisualizationFailedError(path, err)
	}
	return path, nil
}

// writeDenied запись в каталог запрещена: нет прав или файловая система
// смонтирована только на чтение.
func writeDenied(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS)
}

func (r *PanelRenderer) save(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return imaging.Save(img, path, imaging.JPEGQuality(r.JPEGQuality))
}

// Compose собирает полотно. Все три панели в кадре тепловой карты, поэтому
// рамка и наложение совпадают по координатам.
func (r *PanelRenderer) Compose(req port.VisualizationRequest) (*image.NRGBA, error) {
	if req.Scan == nil || req.Scan.Display == nil {
		return nil, errors.New("no display image")
	}
	base := imaging.Clone(req.Scan.Display)
	size := base.Bounds().Dx()

	overlay := imaging.Clone(base)
	if req.Heatmap != nil {
		heat := Colorize(req.Heatmap)
		if heat.Bounds().Dx() != size || heat.Bounds().Dy() != base.Bounds().Dy() {
			return nil, fmt.Errorf("heatmap %dx%d does not match panel %dx%d",
				heat.Bounds().Dx(), heat.Bounds().Dy(), size, base.Bounds().Dy())
		}
		overlay = imaging.Overlay(overlay, heat, image.Pt(0, 0), r.Alpha)
	}

	boxed := imaging.Clone(base)
	if req.BBox != nil {
		r.drawBox(boxed, *req.BBox)
	}

	panelH := base.Bounds().Dy()
	width := 3*size + 4*margin
	height := titleH + panelH + margin + footerRows*lineH + margin
	canvas := imaging.New(width, height, color.White)

	titles := []string{"Original Image", "Attention Map (Grad-CAM)", "Suspicious Region"}
	for i, panel := range []*image.NRGBA{base, overlay, boxed} {
		x := margin + i*(size+margin)
		canvas = imaging.Paste(canvas, panel, image.Pt(x, titleH))
		drawText(canvas, x, titleH-8, titles[i])
	}

	footerTop := titleH + panelH + margin
	draw.Draw(canvas, image.Rect(margin, footerTop-4, width-margin, height-margin/2),
		image.NewUniform(paper), image.Point{}, draw.Src)
	for i, line := range footerLines(req.Report) {
		drawText(canvas, margin+6, footerTop+(i+1)*lineH-4, line)
	}
	return canvas, nil
}

func (r *PanelRenderer) drawBox(img *image.NRGBA, box entity.BoundingBox) {
	rect := box.Rect().Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	t := r.BoxWidth
	fill(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+t))
	fill(img, image.Rect(rect.Min.X, rect.Max.Y-t, rect.Max.X, rect.Max.Y))
	fill(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+t, rect.Max.Y))
	fill(img, image.Rect(rect.Max.X-t, rect.Min.Y, rect.Max.X, rect.Max.Y))

	cx, cy := box.Center()
	cr := r.CrossRadius
	fill(img, image.Rect(cx-cr, cy-1, cx+cr+1, cy+2))
	fill(img, image.Rect(cx-1, cy-cr, cx+2, cy+cr+1))
}

func fill(img *image.NRGBA, rect image.Rectangle) {
	draw.Draw(img, rect.Intersect(img.Bounds()), image.NewUniform(red), image.Point{}, draw.Src)
}

func drawText(img draw.Image, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func footerLines(r entity.DiagnosticReport) []string {
	return []string{
		fmt.Sprintf("DIAGNOSIS: %s", r.PrimaryDiagnosis),
		fmt.Sprintf("Risk Level: %s", r.RiskLevel),
		fmt.Sprintf("Malignancy: %s", entity.Percent(r.MalignancyProbability)),
		r.BIRADS,
		r.Recommendation,
	}
}

// Colorize раскрашивает карту палитрой jet.
func Colorize(h *entity.Heatmap) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, h.Width, h.Height))
	for y := 0; y < h.Height; y++ {
		for x := 0; x < h.Width; x++ {
			img.SetNRGBA(x, y, Jet(h.At(x, y)))
		}
	}
	return img
}

// Jet цвет палитры jet для значения из [0,1].
func Jet(v float64) color.NRGBA {
	channel := func(center float64) uint8 {
		c := 1.5 - math.Abs(4*v-center)
		return uint8(math.Round(255 * math.Max(0, math.Min(1, c))))
	}
	return color.NRGBA{R: channel(3), G: channel(2), B: channel(1), A: 255}
}

// OutputName имя файла визуализации по имени исходного снимка.
func OutputName(source string) string {
	base := filepath.Base(source)
	if source == "" || base == "." || base == string(filepath.Separator) {
		base = "scan"
	}
	ext := strings.ToLower(filepath.Ext(base))
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return strings.TrimSuffix(base, filepath.Ext(base)) + "_diagnosis" + ext
	default:
		return base + "_diagnosis.jpg"
	}
}
