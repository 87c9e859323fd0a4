package classifier

import "encoding/binary"

// Options описывает замороженный граф классификатора. Точки входа, выхода и
// слоя признаков объявлены явно, по именам операций графа.
type Options struct {
	ModelPath string // путь к GraphDef (.pb)
	InputOp   string // вход [1, size, size, 3] float32
	OutputOp  string // вероятность [1, 1] float32
	FeatureOp string // активации последнего сверточного слоя [1, h, w, c]
	// Ограничение потоков, чтобы не мешать соседним процессам
	IntraOpThreads int
	InterOpThreads int
}

// DefaultOptions имена операций экспортированной модели EfficientNet.
func DefaultOptions(modelPath string) Options {
	return Options{
		ModelPath:      modelPath,
		InputOp:        "input_1",
		OutputOp:       "dense_1/Sigmoid",
		FeatureOp:      "efficientnetv2-s/top_activation/mul",
		IntraOpThreads: 2,
		InterOpThreads: 2,
	}
}

// sessionConfig сериализованный tensorflow.ConfigProto: ограничение потоков и
// gpu_options.allow_growth, чтобы память ускорителя выделялась по мере надобности.
func sessionConfig(intra, inter int) []byte {
	buf := []byte{0x10} // intra_op_parallelism_threads
	buf = binary.AppendUvarint(buf, uint64(max(intra, 0)))
	buf = append(buf, 0x28) // inter_op_parallelism_threads
	buf = binary.AppendUvarint(buf, uint64(max(inter, 0)))
	return append(buf, 0x32, 0x02, 0x20, 0x01) // gpu_options { allow_growth: true }
}
