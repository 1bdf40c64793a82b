package moderation

import "context"

// StubClassifier is a deterministic ImageClassifier for tests and local
// development. It returns fixed predictions or a fixed error.
type StubClassifier struct {
	Predictions []Prediction
	Err         error
}

// Classify implements ImageClassifier.
func (s *StubClassifier) Classify(_ context.Context, _ []byte) ([]Prediction, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Predictions, nil
}
