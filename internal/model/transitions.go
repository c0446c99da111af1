package model

// Lifecycle actions a floor actor can submit.
const (
	ActionAuthorize = "authorize"
	ActionAttend    = "attend"
)

var transitionMap = map[string]struct {
	from Estado
	to   Estado
}{
	ActionAuthorize: {from: EstadoEspera, to: EstadoAutorizado},
	ActionAttend:    {from: EstadoAutorizado, to: EstadoAtendido},
}

// ValidTransition reports whether action may be applied to a turn in from.
func ValidTransition(action string, from Estado) bool {
	t, ok := transitionMap[action]
	return ok && t.from == from
}

// TargetEstado returns the state a successful action leaves the turn in.
func TargetEstado(action string) (Estado, bool) {
	t, ok := transitionMap[action]
	return t.to, ok
}

// RequiredEstado returns the state an action must start from.
func RequiredEstado(action string) (Estado, bool) {
	t, ok := transitionMap[action]
	return t.from, ok
}
