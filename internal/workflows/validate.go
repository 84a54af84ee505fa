package workflows

// Validate compiles w and records the outcome on it: Success with an empty
// Error, or Error with the first problem found. An empty except case
// defaults to sample.
func Validate(w *Workflow) error {
	if w.ExceptCase == "" {
		w.ExceptCase = ExceptSample
	}
	if _, err := compile(w); err != nil {
		w.Status = StatusError
		w.Error = err.Error()
		return err
	}
	w.Status = StatusSuccess
	w.Error = ""
	return nil
}
