package embedding

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// session is the inference boundary of the local pipeline. It exists as
// an interface so tests can substitute the native runtime.
type session interface {
	// run executes the model over a padded batch and returns the flat
	// [batch * seqLen * dim] last-hidden-state tensor.
	run(ids, masks [][]int64, seqLen int) ([]float32, error)
	destroy() error
}

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// initRuntime loads the onnxruntime shared library once per process. A
// missing or unloadable library is a fatal configuration error; the
// failure is cached and returned to every subsequent caller.
func initRuntime(library string) error {
	runtimeOnce.Do(func() {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	if runtimeErr != nil {
		return &RuntimeError{Library: library, Err: runtimeErr}
	}
	return nil
}

// onnxSession runs a BERT-family encoder through onnxruntime.
type onnxSession struct {
	session *ort.DynamicAdvancedSession
	dim     int
}

func newOnnxSession(modelPath string, dim int) (session, error) {
	sess, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil)
	if err != nil {
		return nil, fmt.Errorf("create inference session: %w", err)
	}
	return &onnxSession{session: sess, dim: dim}, nil
}

func (s *onnxSession) run(ids, masks [][]int64, seqLen int) ([]float32, error) {
	batch := len(ids)
	if batch == 0 || seqLen == 0 {
		return nil, nil
	}

	flatIDs := make([]int64, 0, batch*seqLen)
	flatMask := make([]int64, 0, batch*seqLen)
	for i := range ids {
		flatIDs = append(flatIDs, ids[i]...)
		flatMask = append(flatMask, masks[i]...)
	}
	// Single-sentence inputs: token type is all zeros.
	flatTypes := make([]int64, batch*seqLen)

	inputShape := ort.NewShape(int64(batch), int64(seqLen))

	idTensor, err := ort.NewTensor(inputShape, flatIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idTensor.Destroy()

	maskTensor, err := ort.NewTensor(inputShape, flatMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(inputShape, flatTypes)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(batch), int64(seqLen), int64(s.dim)))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer outTensor.Destroy()

	err = s.session.Run(
		[]ort.ArbitraryTensor{idTensor, maskTensor, typeTensor},
		[]ort.ArbitraryTensor{outTensor},
	)
	if err != nil {
		return nil, fmt.Errorf("run inference: %w", err)
	}

	data := outTensor.GetData()
	hidden := make([]float32, len(data))
	copy(hidden, data)
	return hidden, nil
}

func (s *onnxSession) destroy() error {
	if s.session == nil {
		return nil
	}
	return s.session.Destroy()
}
