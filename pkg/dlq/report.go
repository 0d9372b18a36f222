package dlq

import (
	"context"
	"encoding/json"
)

// Failure describes one terminal failure in queue vocabulary, decoupled from
// whichever component produced it. Scheduler results map onto it field by
// field: the stage name becomes Component, the failing operation Operation,
// the error kind ErrorType.
type Failure struct {
	Component    string
	Operation    string
	ErrorType    string
	ErrorMessage string
	Payload      json.RawMessage
}

// Record enqueues every failure and returns the new item ids in the same
// order. It stops at the first enqueue error; earlier items stay recorded.
func Record(ctx context.Context, q Queue, failures ...Failure) ([]int64, error) {
	ids := make([]int64, 0, len(failures))
	for _, f := range failures {
		id, err := q.Enqueue(ctx, f.Component, f.Operation, f.ErrorType, f.ErrorMessage, f.Payload)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
