package pipeline

// State is the stage a run is in
type State int

const (
	Idle State = iota
	Discovering
	Extracting
	LocationResolving
	Filtering
	ImageResolving
	Accumulating
	Done
)

var stateNames = [...]string{
	Idle:              "idle",
	Discovering:       "discovering",
	Extracting:        "extracting",
	LocationResolving: "location_resolving",
	Filtering:         "filtering",
	ImageResolving:    "image_resolving",
	Accumulating:      "accumulating",
	Done:              "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Event reports progress to an Observer
type Event struct {
	State State
	Query string
	LotID string
	// Accepted is the number of records kept so far in this run
	Accepted int
	// Reason is set when a candidate was rejected or skipped
	Reason string
	// Candidates is the number of candidates found for Query
	Candidates int
}

// Observer receives events on the run's goroutine. It must not block.
type Observer func(Event)
