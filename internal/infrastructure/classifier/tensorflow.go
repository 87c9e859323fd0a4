//go:build tensorflow
// +build tensorflow

package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	tf "github.com/tensorflow/tensorflow/tensorflow/go"

	"mammo-vision/internal/domain/entity"
	apperrors "mammo-vision/internal/errors"
)

// TFClassifier классификатор на замороженном графе TensorFlow. Градиент
// выхода по слою признаков строится в графе через AddGradients.
// Не потокобезопасен: вызывающий сериализует Load/Infer/Unload.
type TFClassifier struct {
	opts Options

	graph    *tf.Graph
	session  *tf.Session
	input    tf.Output
	output   tf.Output
	features tf.Output
	grads    []tf.Output
}

// NewTFClassifier создаёт классификатор; модель загружается лениво.
func NewTFClassifier(opts Options) *TFClassifier {
	return &TFClassifier{opts: opts}
}

func (c *TFClassifier) FeatureLayer() string {
	return c.opts.FeatureOp
}

func (c *TFClassifier) Loaded() bool {
	return c.session != nil
}

// Load читает GraphDef и открывает сессию.
func (c *TFClassifier) Load(ctx context.Context) error {
	_ = ctx
	if c.session != nil {
		return nil
	}

	model, err := os.ReadFile(c.opts.ModelPath)
	if err != nil {
		return apperrors.NewResourceUnavailableError("classifier weights", err)
	}

	// Детерминированные ядра и постепенное выделение памяти GPU.
	_ = os.Setenv("TF_DETERMINISTIC_OPS", "1")
	_ = os.Setenv("TF_FORCE_GPU_ALLOW_GROWTH", "true")

	graph := tf.NewGraph()
	if err := graph.Import(model, ""); err != nil {
		return apperrors.NewResourceUnavailableError("classifier graph", err)
	}

	input, err := lookup(graph, c.opts.InputOp)
	if err != nil {
		return err
	}
	output, err := lookup(graph, c.opts.OutputOp)
	if err != nil {
		return err
	}
	features, err := lookup(graph, c.opts.FeatureOp)
	if err != nil {
		return err
	}

	grads, err := graph.AddGradients("gradcam", []tf.Output{output}, []tf.Output{features}, nil)
	if err != nil || len(grads) != 1 {
		log.WithError(err).WithField("layer", c.opts.FeatureOp).Warn("gradients are not available, heatmaps disabled")
		grads = nil
	}

	session, err := tf.NewSession(graph, &tf.SessionOptions{
		Config: sessionConfig(c.opts.IntraOpThreads, c.opts.InterOpThreads),
	})
	if err != nil {
		return apperrors.NewResourceUnavailableError("classifier session", err)
	}

	c.graph = graph
	c.session = session
	c.input, c.output, c.features, c.grads = input, output, features, grads

	log.WithField("model", c.opts.ModelPath).Info("classifier loaded")
	return nil
}

// Unload закрывает сессию и отдаёт память.
func (c *TFClassifier) Unload() error {
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	c.graph = nil
	c.grads = nil

	runtime.GC()
	debug.FreeOSMemory()
	log.Debug("classifier unloaded")
	return err
}

// Infer выполняет прямой проход и, если есть, вычисляет градиенты за тот же запуск.
func (c *TFClassifier) Infer(ctx context.Context, in *entity.InputImage) (*entity.Inference, error) {
	_ = ctx
	if c.session == nil {
		return nil, apperrors.NewResourceUnavailableError("classifier", errors.New("model is not loaded"))
	}

	tensor, err := tf.NewTensor(toBatch(in))
	if err != nil {
		return nil, fmt.Errorf("build input tensor: %w", err)
	}

	fetches := []tf.Output{c.output, c.features}
	fetches = append(fetches, c.grads...)

	out, err := c.session.Run(map[tf.Output]*tf.Tensor{c.input: tensor}, fetches, nil)
	if err != nil && c.grads != nil {
		// Повторяем без градиентов: прогноз важнее карты.
		log.WithError(err).Warn("gradient pass failed, retrying without gradients")
		out, err = c.session.Run(map[tf.Output]*tf.Tensor{c.input: tensor}, fetches[:2], nil)
	}
	if err != nil {
		return nil, fmt.Errorf("run classifier: %w", err)
	}

	prob, ok := out[0].Value().([][]float32)
	if !ok || len(prob) == 0 || len(prob[0]) == 0 {
		return nil, fmt.Errorf("unexpected output shape %v", out[0].Shape())
	}

	inf := &entity.Inference{Probability: float64(prob[0][0])}
	if inf.Features, err = toFeatureMap(out[1]); err != nil {
		log.WithError(err).Warn("feature activations unavailable")
		return inf, nil
	}
	if len(out) > 2 {
		if inf.Gradients, err = toFeatureMap(out[2]); err != nil {
			log.WithError(err).Warn("gradients unavailable")
			inf.Gradients = nil
		}
	}
	return inf, nil
}

func lookup(graph *tf.Graph, name string) (tf.Output, error) {
	op := graph.Operation(name)
	if op == nil {
		return tf.Output{}, apperrors.NewResourceUnavailableError("classifier graph",
			fmt.Errorf("operation %q not found", name))
	}
	return op.Output(0), nil
}

func toBatch(in *entity.InputImage) [][][][]float32 {
	img := make([][][]float32, in.Size)
	for y := range img {
		row := make([][]float32, in.Size)
		for x := range row {
			i := (y*in.Size + x) * 3
			row[x] = in.Pixels[i : i+3 : i+3]
		}
		img[y] = row
	}
	return [][][][]float32{img}
}

func toFeatureMap(t *tf.Tensor) (*entity.FeatureMap, error) {
	v, ok := t.Value().([][][][]float32)
	if !ok || len(v) == 0 || len(v[0]) == 0 || len(v[0][0]) == 0 {
		return nil, fmt.Errorf("unexpected activation shape %v", t.Shape())
	}
	h, w, ch := len(v[0]), len(v[0][0]), len(v[0][0][0])
	fm := entity.NewFeatureMap(h, w, ch)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copy(fm.Data[(y*w+x)*ch:], v[0][y][x])
		}
	}
	return fm, nil
}
