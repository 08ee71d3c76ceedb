package workflow

// StateMachine tracks a current state against a set of transition rules.
// It is the in-memory counterpart of the persisted rule table and applies
// exactly the same checks.
type StateMachine interface {
	// State returns the current state
	State() State

	// Check validates a transition to the given state without applying it
	Check(to State, caller Identity) error

	// Fire applies the transition if Check passes
	Fire(to State, caller Identity) error
}

type stateMachine struct {
	currentState State
	rules        map[State]Rule
}

// NewMachine creates a state machine from rule definitions. A later
// definition for the same state replaces an earlier one.
func NewMachine(initialState State, definitions []Definition) StateMachine {
	return &stateMachine{
		currentState: initialState,
		rules:        indexDefinitions(definitions),
	}
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// Check validates a transition to the given state without applying it
func (m *stateMachine) Check(to State, caller Identity) error {
	rule, ok := m.rules[m.currentState]
	if !ok {
		return (*Rule)(nil).Check(m.currentState, to, caller)
	}
	return rule.Check(m.currentState, to, caller)
}

// Fire applies the transition if Check passes
func (m *stateMachine) Fire(to State, caller Identity) error {
	if err := m.Check(to, caller); err != nil {
		return err
	}
	m.currentState = to
	return nil
}

// Reachable walks the rule graph breadth-first from initial. It returns
// every reachable state in discovery order, and the subset of those with
// no outgoing rule.
func Reachable(initial State, definitions []Definition) (reachable []State, deadEnds []State) {
	rules := indexDefinitions(definitions)

	seen := map[State]bool{initial: true}
	queue := []State{initial}
	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]
		reachable = append(reachable, state)

		rule, ok := rules[state]
		if !ok {
			deadEnds = append(deadEnds, state)
			continue
		}
		for _, next := range rule.Destinations {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return reachable, deadEnds
}

func indexDefinitions(definitions []Definition) map[State]Rule {
	rules := make(map[State]Rule, len(definitions))
	for _, def := range definitions {
		rules[def.State] = NewRule(def.Destinations, def.Approvers)
	}
	return rules
}
