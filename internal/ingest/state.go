package ingest

// State is the progress of one ingestion attempt.
type State int

const (
	StateAdmitted State = iota
	StateVerified
	StateTranscoding
	StateRenditionsGenerated
	StatePersisted
	StateAborted
)

var stateNames = [...]string{
	StateAdmitted:            "admitted",
	StateVerified:            "verified",
	StateTranscoding:         "transcoding",
	StateRenditionsGenerated: "renditions_generated",
	StatePersisted:           "persisted",
	StateAborted:             "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StatePersisted || s == StateAborted
}
