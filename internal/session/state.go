package session

// Phase names a session state.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseReading       Phase = "reading"
	PhaseNeedsPassword Phase = "needs_password"
	PhaseParsing       Phase = "parsing"
	PhaseReady         Phase = "ready"
	PhaseImporting     Phase = "importing"
	PhaseDone          Phase = "done"
	PhaseFailed        Phase = "error"
)

// busy reports whether an operation is in flight in this phase.
func (p Phase) busy() bool {
	return p == PhaseReading || p == PhaseParsing || p == PhaseImporting
}

// FailureKind classifies a failed stage.
type FailureKind string

const (
	FailureRead       FailureKind = "read"
	FailureMapping    FailureKind = "mapping"
	FailureExtraction FailureKind = "extraction"
	FailureNoData     FailureKind = "no_data"
	FailureCommit     FailureKind = "commit"
)

// State is one of Idle, Reading, NeedsPassword, Parsing, Ready, Importing,
// Done or Failed.
type State interface {
	Phase() Phase
}

type Idle struct{}

type Reading struct{}

// NeedsPassword waits for a decryption password. Incorrect is set when the
// last submitted password was rejected.
type NeedsPassword struct {
	Incorrect bool
}

type Parsing struct{}

// Ready holds a reviewable batch.
type Ready struct{}

type Importing struct {
	AccountID string
}

type Done struct {
	Committed int
}

// Failed records which stage failed and the message shown to the user.
type Failed struct {
	Stage   Phase
	Kind    FailureKind
	Message string
}

func (Idle) Phase() Phase          { return PhaseIdle }
func (Reading) Phase() Phase       { return PhaseReading }
func (NeedsPassword) Phase() Phase { return PhaseNeedsPassword }
func (Parsing) Phase() Phase       { return PhaseParsing }
func (Ready) Phase() Phase         { return PhaseReady }
func (Importing) Phase() Phase     { return PhaseImporting }
func (Done) Phase() Phase          { return PhaseDone }
func (Failed) Phase() Phase        { return PhaseFailed }

const (
	msgReadFailed      = "could not read the file"
	msgPasswordNeeded  = "this document is password protected"
	msgPasswordWrong   = "incorrect password"
	msgNoMapping       = "choose the date, description and amount columns for this file"
	msgCommitFailed    = "could not save transactions, review and try again"
	msgNoAccount       = "select a destination account before importing"
	msgNothingToImport = "there are no transactions left to import"
)

// message returns the user-facing text carried by a state.
func message(s State) string {
	switch st := s.(type) {
	case Failed:
		return st.Message
	case NeedsPassword:
		if st.Incorrect {
			return msgPasswordWrong
		}
		return msgPasswordNeeded
	}
	return ""
}
