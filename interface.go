package fdiff

import "context"

// Apply parses content and applies every patch block to store. Files are
// processed one at a time; use RunBatches for parallel application.
func Apply(store Storage, content string, threshold float64) (Report, error) {
	return run(store, content, ApplyOptions{Threshold: threshold})
}

// Preview is Apply without writes. Each batch carries its unified diff in
// Preview.
func Preview(store Storage, content string, threshold float64) (Report, error) {
	return run(store, content, ApplyOptions{Threshold: threshold, DryRun: true})
}

func run(store Storage, content string, opts ApplyOptions) (Report, error) {
	plan, err := CreatePlan(content, PlanOptions{})
	if err != nil {
		return Report{}, err
	}
	results, err := RunBatches(context.Background(), store, plan.Batches, opts, 1)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Batches:     results,
		Diagnostics: plan.Diagnostics,
		DryRun:      opts.DryRun,
	}, nil
}
