package gpu

// teardown records release functions in creation order and runs them in
// reverse, so a resource is always destroyed before whatever it was built on.
type teardown struct {
	name  string
	steps []teardownStep
}

type teardownStep struct {
	name    string
	release func()
}

func (t *teardown) push(name string, release func()) {
	t.steps = append(t.steps, teardownStep{name: name, release: release})
}

func (t *teardown) len() int {
	return len(t.steps)
}

// unwind releases every recorded resource, newest first, and empties the list.
// It returns the step names in the order they ran.
func (t *teardown) unwind() []string {
	names := make([]string, 0, len(t.steps))
	for i := len(t.steps) - 1; i >= 0; i-- {
		step := t.steps[i]
		step.release()
		names = append(names, step.name)
	}
	t.steps = t.steps[:0]
	if len(names) > 0 {
		logger.Debugf("released %s resources: %v", t.name, names)
	}
	return names
}
