// Package session drives one import attempt from file selection to commit.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/statement-import/internal/csvimport"
	"github.com/dvloznov/statement-import/internal/document"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/extraction"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/reconcile"
	"github.com/dvloznov/statement-import/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidTransition is returned when an operation does not apply to the current state.
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	// ErrBusy is returned while reading, parsing or importing is in flight.
	ErrBusy = errors.New("session is busy")
	// ErrNoFile is returned by Start before a file is selected.
	ErrNoFile = errors.New("no file selected")
	// ErrNoAccount is returned by Commit without a destination account.
	ErrNoAccount = errors.New(msgNoAccount)
	// ErrUnknownAccount and ErrUnknownCategory are configuration failures of Commit.
	ErrUnknownAccount  = errors.New("unknown account")
	ErrUnknownCategory = errors.New("unknown category")
	// ErrEmptyBatch is returned by Commit when every candidate was deleted.
	ErrEmptyBatch = errors.New(msgNothingToImport)
	// ErrNoMapping is returned for CSV files without a usable column mapping.
	ErrNoMapping = errors.New("no column mapping for CSV file")
	// ErrSuperseded is returned by an in-flight operation whose session was reset.
	ErrSuperseded = errors.New("session was reset")
)

// DefaultPlaceholderCategory is the fill-in-later category.
const DefaultPlaceholderCategory = "uncategorized"

// DocumentReader is the reading stage.
type DocumentReader interface {
	Read(ctx context.Context, fh document.FileHandle, password string) (*document.Document, error)
}

// CandidateExtractor is the extraction stage for non-CSV documents.
type CandidateExtractor interface {
	Run(ctx context.Context, req extraction.Request) ([]domain.CandidateTransaction, error)
}

// Dependencies are the collaborators shared by sessions.
type Dependencies struct {
	Reader     DocumentReader
	Extractor  CandidateExtractor
	Store      store.TransactionStore
	Accounts   store.AccountDirectory
	Categories store.CategoryDirectory
	Presets    csvimport.Presets
	Notifier   Notifier
	Logger     zerolog.Logger

	// Placeholder is assigned to uncategorized candidates before commit.
	Placeholder string
	// ExtractTimeout bounds one extraction call. Zero means no bound.
	ExtractTimeout time.Duration
	Now            func() time.Time
}

// Session is a single import attempt. All methods are safe for concurrent use.
type Session struct {
	id   string
	deps Dependencies
	log  zerolog.Logger

	mu        sync.Mutex
	state     State
	file      *document.FileHandle
	password  string
	mapping   *domain.ColumnMapping
	preset    string
	source    string
	batch     *reconcile.Batch
	parsed    *csvimport.ParseResult
	lastErr   error
	gen       uint64
	updatedAt time.Time
	pending   []Event
}

// New creates an idle session.
func New(deps Dependencies) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Placeholder == "" {
		deps.Placeholder = DefaultPlaceholderCategory
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		deps:      deps,
		log:       deps.Logger.With().Str("session_id", id).Logger(),
		state:     Idle{},
		updatedAt: deps.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition must be called with s.mu held. Events are delivered by unlock.
func (s *Session) transition(to State) {
	from := s.state.Phase()
	s.state = to
	s.updatedAt = s.deps.Now()
	s.pending = append(s.pending, Event{
		SessionID: s.id,
		From:      from,
		To:        to.Phase(),
		Message:   message(to),
		At:        s.updatedAt,
	})
}

// unlock releases s.mu and then delivers queued events.
func (s *Session) unlock() {
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	if s.deps.Notifier == nil {
		return
	}
	for _, e := range events {
		s.deps.Notifier.Notify(e)
	}
}

func (s *Session) fail(stage Phase, kind FailureKind, msg string, err error) {
	s.lastErr = err
	s.transition(Failed{Stage: stage, Kind: kind, Message: msg})
}

// SelectFile chooses the file to import. It clears the batch, error and
// password and leaves the session idle.
func (s *Session) SelectFile(fh document.FileHandle) error {
	s.mu.Lock()
	defer s.unlock()

	switch s.state.(type) {
	case Idle, Failed, NeedsPassword, Done:
	case Ready:
		return fmt.Errorf("SelectFile: reset before choosing another file: %w", ErrInvalidTransition)
	default:
		return fmt.Errorf("SelectFile: %w", ErrBusy)
	}

	s.gen++
	s.file = &fh
	s.password = ""
	s.mapping = nil
	s.preset = ""
	s.batch = nil
	s.parsed = nil
	s.lastErr = nil
	s.transition(Idle{})
	return nil
}

// SetMapping sets the CSV column mapping used by the next Start.
func (s *Session) SetMapping(m domain.ColumnMapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("SetMapping: %w", err)
	}

	s.mu.Lock()
	defer s.unlock()

	switch s.state.(type) {
	case Idle, Failed:
	default:
		return fmt.Errorf("SetMapping: %w", ErrInvalidTransition)
	}
	s.mapping = &m
	s.preset = ""
	return nil
}

// Start reads and extracts the selected file.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state.(type) {
	case Idle:
	case Reading, Parsing, Importing:
		s.unlock()
		return fmt.Errorf("Start: %w", ErrBusy)
	default:
		s.unlock()
		return fmt.Errorf("Start: %w", ErrInvalidTransition)
	}
	if s.file == nil {
		s.unlock()
		return fmt.Errorf("Start: %w", ErrNoFile)
	}
	return s.run(ctx)
}

// SubmitPassword retries reading with a decryption password.
func (s *Session) SubmitPassword(ctx context.Context, password string) error {
	s.mu.Lock()
	if _, ok := s.state.(NeedsPassword); !ok {
		s.unlock()
		return fmt.Errorf("SubmitPassword: %w", ErrInvalidTransition)
	}
	s.password = password
	return s.run(ctx)
}

// run must be entered with s.mu held; it releases it.
func (s *Session) run(ctx context.Context) error {
	s.gen++
	gen := s.gen
	fh := *s.file
	password := s.password
	mapping := s.mapping
	s.lastErr = nil
	s.transition(Reading{})
	s.unlock()

	ctx = logger.WithContext(ctx, s.log)

	doc, err := s.deps.Reader.Read(ctx, fh, password)

	s.mu.Lock()
	if s.gen != gen {
		s.unlock()
		return ErrSuperseded
	}
	if err != nil {
		s.readFailed(err)
		s.unlock()
		return err
	}
	s.transition(Parsing{})
	s.unlock()

	candidates, parsed, preset, err := s.extract(ctx, doc, password, mapping)

	s.mu.Lock()
	defer s.unlock()
	if s.gen != gen {
		return ErrSuperseded
	}
	s.parsed = parsed
	if err != nil {
		s.extractFailed(err)
		return err
	}

	s.batch = reconcile.NewBatch(candidates)
	s.preset = preset
	s.source = "extraction"
	if doc.MediaType == document.MediaCSV {
		s.source = "csv"
	}
	s.transition(Ready{})
	return nil
}

func (s *Session) readFailed(err error) {
	switch {
	case errors.Is(err, document.ErrIncorrectPassword):
		s.lastErr = err
		s.transition(NeedsPassword{Incorrect: true})
	case errors.Is(err, document.ErrPasswordRequired):
		s.lastErr = err
		s.transition(NeedsPassword{Incorrect: s.password != ""})
	default:
		s.log.Warn().Err(err).Msg("Reading stage failed")
		s.fail(PhaseReading, FailureRead, msgReadFailed, err)
	}
}

func (s *Session) extractFailed(err error) {
	switch {
	case document.IsPasswordError(err):
		// the extraction service recognised an encrypted document
		s.readFailed(err)
	case errors.Is(err, ErrNoMapping):
		s.fail(PhaseParsing, FailureMapping, msgNoMapping, err)
	case errors.Is(err, extraction.ErrNoTransactions):
		s.fail(PhaseParsing, FailureNoData, extraction.UserMessage(err), err)
	default:
		s.log.Warn().Err(err).Msg("Extraction stage failed")
		s.fail(PhaseParsing, FailureExtraction, extraction.UserMessage(err), err)
	}
}

// extract turns a read document into candidates. CSV files go through the
// deterministic parser; everything else goes to the extraction service.
func (s *Session) extract(ctx context.Context, doc *document.Document, password string, mapping *domain.ColumnMapping) ([]domain.CandidateTransaction, *csvimport.ParseResult, string, error) {
	if doc.MediaType == document.MediaCSV {
		return s.parseCSV(ctx, doc, mapping)
	}

	if s.deps.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.ExtractTimeout)
		defer cancel()
	}
	candidates, err := s.deps.Extractor.Run(ctx, extraction.RequestFromDocument(doc, password))
	if err != nil {
		return nil, nil, "", err
	}
	return candidates, nil, "", nil
}

func (s *Session) parseCSV(ctx context.Context, doc *document.Document, mapping *domain.ColumnMapping) ([]domain.CandidateTransaction, *csvimport.ParseResult, string, error) {
	log := logger.FromContext(ctx)

	var preset string
	if mapping == nil {
		name, m, ok := s.deps.Presets.Detect(csvimport.Headers(doc.Text))
		if !ok {
			return nil, nil, "", fmt.Errorf("parseCSV: %s: %w", doc.Name, ErrNoMapping)
		}
		preset = name
		mapping = &m
	}

	result := csvimport.Parse(doc.Text, *mapping)

	log.Info().
		Str("file", doc.Name).
		Str("preset", preset).
		Int("total_rows", result.TotalRows).
		Int("skipped_rows", result.SkippedRows).
		Int("transactions", len(result.Transactions)).
		Msg("CSV parsed")

	if len(result.Transactions) == 0 {
		return nil, &result, preset, fmt.Errorf("parseCSV: %s: %w", doc.Name, extraction.ErrNoTransactions)
	}

	candidates := make([]domain.CandidateTransaction, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		candidates = append(candidates, domain.FromNormalized(tx))
	}
	return candidates, &result, preset, nil
}

// Edit applies fn to the working batch. Only valid while ready.
func (s *Session) Edit(fn func(b *reconcile.Batch)) error {
	s.mu.Lock()
	defer s.unlock()

	if _, ok := s.state.(Ready); !ok {
		return fmt.Errorf("Edit: %w", ErrInvalidTransition)
	}
	fn(s.batch)
	s.updatedAt = s.deps.Now()
	return nil
}

// Commit stores the reviewed batch in accountID. Configuration problems
// (no account, unknown account or category, empty batch) leave the session
// ready. A store rejection moves it to error with the batch intact.
func (s *Session) Commit(ctx context.Context, accountID string) (int, error) {
	if accountID == "" {
		if err := s.expect(PhaseReady); err != nil {
			return 0, fmt.Errorf("Commit: %w", err)
		}
		return 0, fmt.Errorf("Commit: %w", ErrNoAccount)
	}

	dir, err := loadDirectory(ctx, s.deps.Accounts, s.deps.Categories)
	if err != nil {
		return 0, fmt.Errorf("Commit: %w", err)
	}

	s.mu.Lock()
	if _, ok := s.state.(Ready); !ok {
		s.unlock()
		return 0, fmt.Errorf("Commit: %w", ErrInvalidTransition)
	}
	if s.batch.Len() == 0 {
		s.unlock()
		return 0, fmt.Errorf("Commit: %w", ErrEmptyBatch)
	}

	account, err := dir.account(accountID)
	if err != nil {
		s.unlock()
		return 0, fmt.Errorf("Commit: %w", err)
	}

	working := s.batch.Clone()
	working.FillUncategorized(s.deps.Placeholder)
	candidates := working.Candidates()
	for i := range candidates {
		id, err := dir.category(candidates[i].CategoryID)
		if err != nil {
			s.unlock()
			return 0, fmt.Errorf("Commit: %s: %w", candidates[i].Description, err)
		}
		candidates[i].CategoryID = id
	}

	recs := store.RecordsFromCandidates(candidates, account, s.id, s.source, s.deps.Now().UTC())
	s.transition(Importing{AccountID: account})
	s.unlock()

	saved, err := s.deps.Store.CreateBulk(logger.WithContext(ctx, s.log), recs)

	s.mu.Lock()
	defer s.unlock()
	if err != nil {
		s.log.Error().Err(err).Int("records", len(recs)).Msg("Commit rejected by store")
		s.fail(PhaseImporting, FailureCommit, msgCommitFailed, err)
		return 0, fmt.Errorf("Commit: %w", err)
	}

	s.log.Info().Int("records", len(saved)).Str("account_id", account).Msg("Import committed")
	s.batch = nil
	s.parsed = nil
	s.password = ""
	if s.file != nil {
		s.file.Data = nil
	}
	s.transition(Done{Committed: len(saved)})
	return len(saved), nil
}

func (s *Session) expect(p Phase) error {
	s.mu.Lock()
	defer s.unlock()
	if s.state.Phase() != p {
		return ErrInvalidTransition
	}
	return nil
}

// Retry leaves the error state: back to ready when a batch is held,
// otherwise to idle keeping the file and password.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.unlock()

	if _, ok := s.state.(Failed); !ok {
		return fmt.Errorf("Retry: %w", ErrInvalidTransition)
	}
	s.lastErr = nil
	if s.batch != nil {
		s.transition(Ready{})
		return nil
	}
	s.transition(Idle{})
	return nil
}

// Reset discards all session state. In-flight reading or parsing results are
// dropped when they return. Reset is refused while importing.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.unlock()

	if _, ok := s.state.(Importing); ok {
		return fmt.Errorf("Reset: %w", ErrBusy)
	}
	s.gen++
	s.file = nil
	s.password = ""
	s.mapping = nil
	s.preset = ""
	s.source = ""
	s.batch = nil
	s.parsed = nil
	s.lastErr = nil
	if _, ok := s.state.(Idle); !ok {
		s.transition(Idle{})
	}
	return nil
}

// stale reports whether the session is idle in its phase and was last
// updated before cutoff.
func (s *Session) stale(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.Phase().busy() && s.updatedAt.Before(cutoff)
}

// Err returns the error behind the current failed or password state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
