// Command predict анализирует снимки из командной строки и печатает
// подробное заключение.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"mammo-vision/config"
	"mammo-vision/internal/container"
	"mammo-vision/internal/domain/entity"
	"mammo-vision/internal/infrastructure/storage"
)

type imageList []string

func (l *imageList) String() string { return strings.Join(*l, ",") }

func (l *imageList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var images imageList
	flag.Var(&images, "image", "path to a scan (repeat for batch mode)")
	model := flag.String("model", "", "frozen classifier graph (overrides MODEL_PATH)")
	out := flag.String("out", "", "visualization directory (overrides VISUALIZATION_DIR)")
	noViz := flag.Bool("no-viz", false, "skip the three-panel visualization")
	asJSON := flag.Bool("json", false, "print results as JSON")
	flag.Parse()

	if len(images) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.SetupLogging()
	if *model != "" {
		cfg.Model.Path = *model
	}
	if *out != "" {
		cfg.Pipeline.VisualizationDir = *out
	}
	if *noViz {
		cfg.Pipeline.GenerateVisualization = false
	}

	ctx := context.Background()
	c, err := container.New(ctx, cfg, storage.NewMemoryUserRepository())
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}
	defer c.Close()

	items := c.AnalysisService.AnalyzeBatch(ctx, images)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			log.Fatalf("Failed to encode results: %v", err)
		}
	} else {
		for _, item := range items {
			printItem(os.Stdout, item)
		}
	}

	for _, item := range items {
		if item.Error != "" {
			os.Exit(1)
		}
	}
}

func printItem(w io.Writer, item entity.BatchItem) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Image: %s\n", item.Source)
	fmt.Fprintln(w, rule)

	if item.Result == nil {
		fmt.Fprintf(w, "Analysis failed: %s\n\n", item.Error)
		return
	}

	r := item.Result
	report := r.DiagnosticReport
	fmt.Fprintf(w, "DIAGNOSIS:          %s\n", report.PrimaryDiagnosis)
	fmt.Fprintf(w, "Risk Level:         %s\n", report.RiskLevel)
	fmt.Fprintf(w, "Malignancy:         %s\n", entity.Percent(report.MalignancyProbability))
	fmt.Fprintf(w, "Benign:             %s\n", entity.Percent(report.BenignProbability))
	fmt.Fprintf(w, "Confidence:         %s\n", entity.Percent(report.Confidence))
	fmt.Fprintf(w, "Assessment:         %s\n", report.ClinicalAssessment)
	fmt.Fprintf(w, "BI-RADS:            %s\n", report.BIRADS)
	fmt.Fprintf(w, "Recommendation:     %s\n", report.Recommendation)
	fmt.Fprintf(w, "Tissue crop:        x=%d y=%d %dx%d\n", r.Crop.X, r.Crop.Y, r.Crop.Width, r.Crop.Height)

	if r.BBox != nil {
		fmt.Fprintf(w, "Region of interest: x=%d y=%d %dx%d\n", r.BBox.X, r.BBox.Y, r.BBox.Width, r.BBox.Height)
	} else {
		fmt.Fprintln(w, "Region of interest: No focal region detected")
	}
	if !r.HeatmapAvailable {
		fmt.Fprintln(w, "Attention map:      unavailable")
	}
	if r.Quality != nil {
		fmt.Fprintf(w, "Image quality:      %.1f/100\n", r.Quality.Score)
	}
	if r.VisualizationPath != nil {
		fmt.Fprintf(w, "Visualization:      %s\n", *r.VisualizationPath)
	}
	fmt.Fprintln(w)
}
