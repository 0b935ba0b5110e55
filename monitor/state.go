package monitor

type State int

const (
	Connecting State = iota
	Streaming
	Draining
	Error
	Stopped
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Streaming:
		return "Streaming"
	case Draining:
		return "Draining"
	case Error:
		return "Error"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

func (s State) Terminal() bool {
	return s == Stopped
}

// legal lists the transitions the render loop may make.
var legal = map[State][]State{
	Connecting: {Streaming, Error},
	Streaming:  {Draining, Error},
	Draining:   {Stopped},
	Error:      {Stopped},
}

func canTransition(from, to State) bool {
	for _, s := range legal[from] {
		if s == to {
			return true
		}
	}
	return false
}
