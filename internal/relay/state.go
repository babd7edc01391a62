package relay

type State string

const (
	IDLE    State = "idle"
	SHARING State = "sharing"
	STOPPED State = "stopped"
)

func (r *Relay) setState(channel string, s State) {
	r.mu.Lock()
	r.states[channel] = s
	r.mu.Unlock()
}

// State is IDLE for channels the relay has never seen.
func (r *Relay) State(channel string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[channel]; ok {
		return s
	}
	return IDLE
}

func (r *Relay) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := make(map[string]State, len(r.states))
	for k, v := range r.states {
		m[k] = v
	}
	return m
}
