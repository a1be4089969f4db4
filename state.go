package rtkernel

// State of a thread
type State byte

// String implements Stringer interface
func (s State) String() string {
	switch s {
	case StateWTStart:
		return "WTStart"
	case StateReady:
		return "Ready"
	case StateFinal:
		return "Final"
	}

	return ""
}

const (
	StateWTStart State = iota
	StateReady
	StateFinal
)

type threadMode byte

const (
	modeStatic threadMode = iota
	modeMPool
)
