package tracing

import (
	"context"

	"github.com/sarchlab/procsim/datarecording"
)

// LoadActivations reads back up to limit activations in the order they were
// recorded, together with the number of stored activations. A limit of zero
// reads all of them.
func LoadActivations(
	ctx context.Context,
	r datarecording.DataReader,
	limit int,
) ([]Activation, int, error) {
	results, total, err := r.Query(ctx, ActivationTable, Activation{},
		datarecording.QueryParams{OrderBy: "rowid", Limit: limit})
	if err != nil {
		return nil, 0, err
	}

	activations := make([]Activation, 0, len(results))
	for _, res := range results {
		activations = append(activations, *res.(*Activation))
	}

	return activations, total, nil
}
