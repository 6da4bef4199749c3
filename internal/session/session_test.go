package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/csvimport"
	"github.com/dvloznov/statement-import/internal/document"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/extraction"
	"github.com/dvloznov/statement-import/internal/reconcile"
	"github.com/dvloznov/statement-import/internal/store"
	"github.com/dvloznov/statement-import/internal/store/inmemory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementCSV = "Date,Description,Amount\n" +
	"2026-01-03,Salary,\"45,000.00\"\n" +
	"17/02/2026,Coffee,-59\n" +
	"2026-02-18,Broken,abc\n"

var csvMapping = domain.ColumnMapping{Date: "Date", Description: "Description", Amount: "Amount"}

type mockReader struct {
	readFn func(ctx context.Context, fh document.FileHandle, password string) (*document.Document, error)
}

func (m *mockReader) Read(ctx context.Context, fh document.FileHandle, password string) (*document.Document, error) {
	return m.readFn(ctx, fh, password)
}

type mockExtractor struct {
	mu    sync.Mutex
	calls int
	runFn func(ctx context.Context, req extraction.Request) ([]domain.CandidateTransaction, error)
}

func (m *mockExtractor) Run(ctx context.Context, req extraction.Request) ([]domain.CandidateTransaction, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.runFn(ctx, req)
}

type mockStore struct {
	mu    sync.Mutex
	calls int
	bulk  func(ctx context.Context, recs []store.TransactionRecord) ([]store.TransactionRecord, error)
}

func (m *mockStore) Create(ctx context.Context, rec store.TransactionRecord) (store.TransactionRecord, error) {
	out, err := m.CreateBulk(ctx, []store.TransactionRecord{rec})
	if err != nil {
		return store.TransactionRecord{}, err
	}
	return out[0], nil
}

func (m *mockStore) CreateBulk(ctx context.Context, recs []store.TransactionRecord) ([]store.TransactionRecord, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.bulk(ctx, recs)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Phase, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.To)
	}
	return out
}

func directoryStore() *inmemory.Store {
	return inmemory.NewStore(
		[]store.Account{{ID: "acc-1", Name: "Checking"}},
		[]store.Category{
			{ID: "food", Name: "Food"},
			{ID: "salary", Name: "Salary"},
			{ID: DefaultPlaceholderCategory, Name: "Fill in later"},
		},
	)
}

func testDeps(st *inmemory.Store) Dependencies {
	return Dependencies{
		Reader:     document.NewReader(nil),
		Extractor:  &mockExtractor{runFn: func(context.Context, extraction.Request) ([]domain.CandidateTransaction, error) { return nil, errors.New("unexpected call") }},
		Store:      st,
		Accounts:   st,
		Categories: st,
		Logger:     zerolog.Nop(),
	}
}

func readyCSVSession(t *testing.T, deps Dependencies) *Session {
	t.Helper()
	s := New(deps)
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "statement.csv", Data: []byte(statementCSV)}))
	require.NoError(t, s.SetMapping(csvMapping))
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, PhaseReady, s.State().Phase())
	return s
}

func aiCandidates() []domain.CandidateTransaction {
	return []domain.CandidateTransaction{
		{Date: civil.Date{Year: 2026, Month: 2, Day: 17}, Time: "08:15", Description: "7-Eleven", Amount: decimal.NewFromInt(59), Type: domain.Expense},
		{Date: civil.Date{Year: 2026, Month: 2, Day: 17}, Description: "7-Eleven", Amount: decimal.NewFromInt(59), Type: domain.Expense},
	}
}

func TestCSVRoute_ParseReviewCommit(t *testing.T) {
	st := directoryStore()
	rec := &recorder{}
	deps := testDeps(st)
	deps.Notifier = rec

	s := readyCSVSession(t, deps)

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.TotalRows)
	assert.Equal(t, 1, snap.SkippedRows)
	require.Len(t, snap.Candidates, 2)
	assert.True(t, snap.TotalIncome.Equal(decimal.NewFromInt(45000)))
	assert.True(t, snap.TotalExpense.Equal(decimal.NewFromInt(59)))
	for _, c := range snap.Candidates {
		assert.NotEmpty(t, c.ReferenceID, "CSV candidates carry a fingerprint")
	}

	require.NoError(t, s.Edit(func(b *reconcile.Batch) {
		b.SelectAll(domain.Income)
		b.AssignCategory("Salary")
	}))

	n, err := s.Commit(context.Background(), "checking")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, Done{Committed: 2}, s.State())

	recs, err := st.ListTransactions(context.Background(), store.ListFilter{AccountID: "acc-1"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "salary", recs[0].CategoryID)
	assert.Equal(t, DefaultPlaceholderCategory, recs[1].CategoryID)
	assert.Equal(t, s.ID(), recs[0].ImportID)
	assert.Equal(t, "csv", recs[0].Source)

	assert.Equal(t, []Phase{PhaseIdle, PhaseReading, PhaseParsing, PhaseReady, PhaseImporting, PhaseDone}, rec.phases())
	assert.Empty(t, s.Snapshot().Candidates, "candidates are discarded after commit")

	s.mu.Lock()
	assert.Nil(t, s.file.Data, "file contents are released after commit")
	assert.Empty(t, s.password)
	s.mu.Unlock()
	assert.Equal(t, "statement.csv", s.Snapshot().File)
}

func TestCSVRoute_NoData(t *testing.T) {
	s := New(testDeps(directoryStore()))
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "zero.csv", Data: []byte("Date,Description,Amount\n2026-01-01,Nothing,0\n")}))
	require.NoError(t, s.SetMapping(csvMapping))

	err := s.Start(context.Background())

	require.ErrorIs(t, err, extraction.ErrNoTransactions)
	assert.Equal(t, Failed{Stage: PhaseParsing, Kind: FailureNoData, Message: "no transactions found in this document"}, s.State())
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.SkippedRows)
	require.Len(t, snap.Skips, 1)
	assert.Equal(t, csvimport.SkipZeroAmount, snap.Skips[0].Reason)
}

func TestCSVRoute_MappingFromPresets(t *testing.T) {
	deps := testDeps(directoryStore())
	s := New(deps)
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "statement.csv", Data: []byte(statementCSV)}))

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrNoMapping)
	assert.Equal(t, FailureMapping, s.State().(Failed).Kind)

	deps.Presets = csvimport.Presets{"plain": csvMapping}
	s = New(deps)
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "statement.csv", Data: []byte(statementCSV)}))
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, "plain", s.Snapshot().Preset)
}

func TestPasswordFlow(t *testing.T) {
	reader := &mockReader{readFn: func(_ context.Context, fh document.FileHandle, password string) (*document.Document, error) {
		switch password {
		case "":
			return nil, document.ErrPasswordRequired
		case "secret":
			return &document.Document{Name: fh.Name, MediaType: document.MediaPDF, Text: "statement text", Encrypted: true}, nil
		default:
			return nil, document.ErrIncorrectPassword
		}
	}}
	var gotReq extraction.Request
	extractor := &mockExtractor{runFn: func(_ context.Context, req extraction.Request) ([]domain.CandidateTransaction, error) {
		gotReq = req
		return aiCandidates(), nil
	}}
	deps := testDeps(directoryStore())
	deps.Reader = reader
	deps.Extractor = extractor

	s := New(deps)
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "locked.pdf", URI: "gs://bucket/locked.pdf"}))

	err := s.Start(context.Background())
	require.ErrorIs(t, err, document.ErrPasswordRequired)
	assert.Equal(t, NeedsPassword{}, s.State())
	assert.Equal(t, "this document is password protected", s.Snapshot().Message)

	err = s.SubmitPassword(context.Background(), "wrong")
	require.ErrorIs(t, err, document.ErrIncorrectPassword)
	assert.Equal(t, NeedsPassword{Incorrect: true}, s.State())
	assert.Equal(t, "incorrect password", s.Snapshot().Message)
	assert.Zero(t, extractor.calls)

	require.NoError(t, s.SubmitPassword(context.Background(), "secret"))
	assert.Equal(t, PhaseReady, s.State().Phase())
	assert.Equal(t, 1, extractor.calls)
	assert.Equal(t, "statement text", gotReq.Text)

	snap := s.Snapshot()
	require.Len(t, snap.Candidates, 2)
	assert.NotEqual(t, snap.Candidates[0].ID, snap.Candidates[1].ID, "identical purchases stay distinct")
}

func TestExtractionSignalsPassword(t *testing.T) {
	deps := testDeps(directoryStore())
	deps.Reader = &mockReader{readFn: func(_ context.Context, fh document.FileHandle, _ string) (*document.Document, error) {
		return &document.Document{Name: fh.Name, MediaType: document.MediaPNG, Data: []byte{1}}, nil
	}}
	deps.Extractor = &mockExtractor{runFn: func(context.Context, extraction.Request) ([]domain.CandidateTransaction, error) {
		return nil, document.ErrPasswordRequired
	}}

	s := New(deps)
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "scan.png", Data: []byte{1}}))
	require.Error(t, s.Start(context.Background()))
	assert.Equal(t, PhaseNeedsPassword, s.State().Phase())
}

func TestExtractionFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind FailureKind
		wantMsg  string
	}{
		{"malformed", extraction.ErrMalformedResponse, FailureExtraction, "could not extract transactions, try a clearer document"},
		{"no data", extraction.ErrNoTransactions, FailureNoData, "no transactions found in this document"},
		{"service", errors.Join(extraction.ErrServiceFailed, errors.New("quota")), FailureExtraction, "extraction failed, try again or use a clearer document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(directoryStore())
			deps.Reader = &mockReader{readFn: func(_ context.Context, fh document.FileHandle, _ string) (*document.Document, error) {
				return &document.Document{Name: fh.Name, MediaType: document.MediaJPEG, Data: []byte{1}}, nil
			}}
			deps.Extractor = &mockExtractor{runFn: func(context.Context, extraction.Request) ([]domain.CandidateTransaction, error) {
				return nil, tt.err
			}}

			s := New(deps)
			require.NoError(t, s.SelectFile(document.FileHandle{Name: "photo.jpg", Data: []byte{1}}))
			require.ErrorIs(t, s.Start(context.Background()), tt.err)

			assert.Equal(t, Failed{Stage: PhaseParsing, Kind: tt.wantKind, Message: tt.wantMsg}, s.State())
			assert.ErrorIs(t, s.Err(), tt.err)
		})
	}
}

func TestReadFailure(t *testing.T) {
	s := New(testDeps(directoryStore()))
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "notes.txt", Data: []byte("\x00\x01\x02binary")}))

	require.Error(t, s.Start(context.Background()))
	assert.Equal(t, Failed{Stage: PhaseReading, Kind: FailureRead, Message: "could not read the file"}, s.State())
}

func TestExtractionTimeout(t *testing.T) {
	deps := testDeps(directoryStore())
	deps.ExtractTimeout = 10 * time.Millisecond
	deps.Reader = &mockReader{readFn: func(_ context.Context, fh document.FileHandle, _ string) (*document.Document, error) {
		return &document.Document{Name: fh.Name, MediaType: document.MediaPDF, Data: []byte("%PDF")}, nil
	}}
	deps.Extractor = extraction.NewExtractor(extraction.ServiceFunc(func(ctx context.Context, _ extraction.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}))

	s := New(deps)
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "slow.pdf", Data: []byte("%PDF")}))
	err := s.Start(context.Background())

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Failed{Stage: PhaseParsing, Kind: FailureExtraction, Message: "extraction timed out, try again"}, s.State())
}

func TestRetryWithoutBatchReturnsToIdleKeepingFile(t *testing.T) {
	calls := 0
	deps := testDeps(directoryStore())
	deps.Reader = &mockReader{readFn: func(_ context.Context, fh document.FileHandle, _ string) (*document.Document, error) {
		return &document.Document{Name: fh.Name, MediaType: document.MediaPDF, Data: []byte("%PDF")}, nil
	}}
	deps.Extractor = &mockExtractor{runFn: func(context.Context, extraction.Request) ([]domain.CandidateTransaction, error) {
		calls++
		if calls == 1 {
			return nil, extraction.ErrMalformedResponse
		}
		return aiCandidates(), nil
	}}

	s := New(deps)
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "statement.pdf", Data: []byte("%PDF")}))
	require.Error(t, s.Start(context.Background()))

	require.NoError(t, s.Retry())
	assert.Equal(t, Idle{}, s.State())
	assert.Equal(t, "statement.pdf", s.Snapshot().File)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, PhaseReady, s.State().Phase())
}

func TestCommitRejectedLeavesErrorWithFullCandidateList(t *testing.T) {
	st := directoryStore()
	failing := &mockStore{bulk: func(context.Context, []store.TransactionRecord) ([]store.TransactionRecord, error) {
		return nil, errors.New("quota exceeded")
	}}
	deps := testDeps(st)
	deps.Store = failing

	s := readyCSVSession(t, deps)
	before := s.Snapshot().Candidates

	_, err := s.Commit(context.Background(), "acc-1")

	require.Error(t, err)
	assert.Equal(t, Failed{Stage: PhaseImporting, Kind: FailureCommit, Message: "could not save transactions, review and try again"}, s.State())
	assert.Equal(t, before, s.Snapshot().Candidates)

	require.NoError(t, s.Retry())
	assert.Equal(t, Ready{}, s.State())
	assert.Equal(t, before, s.Snapshot().Candidates)

	failing.bulk = func(ctx context.Context, recs []store.TransactionRecord) ([]store.TransactionRecord, error) {
		return st.CreateBulk(ctx, recs)
	}
	n, err := s.Commit(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCommitConfigurationFailuresStayReady(t *testing.T) {
	st := directoryStore()
	spy := &mockStore{bulk: st.CreateBulk}
	deps := testDeps(st)
	deps.Store = spy
	s := readyCSVSession(t, deps)

	_, err := s.Commit(context.Background(), "")
	require.ErrorIs(t, err, ErrNoAccount)
	assert.Equal(t, "select a destination account before importing", ErrNoAccount.Error())
	assert.Equal(t, Ready{}, s.State())

	_, err = s.Commit(context.Background(), "savings")
	require.ErrorIs(t, err, ErrUnknownAccount)
	assert.Equal(t, Ready{}, s.State())

	require.NoError(t, s.Edit(func(b *reconcile.Batch) {
		b.SelectAll(domain.Expense)
		b.AssignCategory("travel")
	}))
	_, err = s.Commit(context.Background(), "acc-1")
	require.ErrorIs(t, err, ErrUnknownCategory)
	assert.Equal(t, Ready{}, s.State())

	require.NoError(t, s.Edit(func(b *reconcile.Batch) {
		for _, c := range b.Candidates() {
			b.Delete(c.ID)
		}
	}))
	_, err = s.Commit(context.Background(), "acc-1")
	require.ErrorIs(t, err, ErrEmptyBatch)

	assert.Zero(t, spy.calls, "store must not be touched")
}

func TestResetRefusedWhileImporting(t *testing.T) {
	st := directoryStore()
	release := make(chan struct{})
	deps := testDeps(st)
	deps.Store = &mockStore{bulk: func(ctx context.Context, recs []store.TransactionRecord) ([]store.TransactionRecord, error) {
		<-release
		return st.CreateBulk(ctx, recs)
	}}
	s := readyCSVSession(t, deps)

	done := make(chan error, 1)
	go func() {
		_, err := s.Commit(context.Background(), "acc-1")
		done <- err
	}()

	require.Eventually(t, func() bool { return s.State().Phase() == PhaseImporting }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Reset(), ErrBusy)
	assert.ErrorIs(t, s.Start(context.Background()), ErrBusy)
	assert.ErrorIs(t, s.Edit(func(*reconcile.Batch) {}), ErrInvalidTransition)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseDone, s.State().Phase())
	require.NoError(t, s.Reset())
	assert.Equal(t, Idle{}, s.State())
}

func TestResetDuringReadingDiscardsResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	deps := testDeps(directoryStore())
	deps.Reader = &mockReader{readFn: func(_ context.Context, fh document.FileHandle, _ string) (*document.Document, error) {
		close(entered)
		<-release
		return &document.Document{Name: fh.Name, MediaType: document.MediaCSV, Text: statementCSV}, nil
	}}

	s := New(deps)
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "statement.csv", Data: []byte(statementCSV)}))
	require.NoError(t, s.SetMapping(csvMapping))

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	<-entered
	assert.Equal(t, Reading{}, s.State())
	require.NoError(t, s.Reset())
	close(release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, Idle{}, s.State())
	assert.Empty(t, s.Snapshot().Candidates)
	assert.ErrorIs(t, s.Start(context.Background()), ErrNoFile)
}

func TestInvalidTransitions(t *testing.T) {
	s := New(testDeps(directoryStore()))

	assert.ErrorIs(t, s.Start(context.Background()), ErrNoFile)
	assert.ErrorIs(t, s.SubmitPassword(context.Background(), "x"), ErrInvalidTransition)
	assert.ErrorIs(t, s.Edit(func(*reconcile.Batch) {}), ErrInvalidTransition)
	assert.ErrorIs(t, s.Retry(), ErrInvalidTransition)
	_, err := s.Commit(context.Background(), "acc-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Error(t, s.SetMapping(domain.ColumnMapping{Date: "Date"}))

	s = readyCSVSession(t, testDeps(directoryStore()))
	assert.ErrorIs(t, s.SelectFile(document.FileHandle{Name: "other.csv"}), ErrInvalidTransition)
	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidTransition)
}

func TestSelectFileClearsState(t *testing.T) {
	deps := testDeps(directoryStore())
	deps.Reader = &mockReader{readFn: func(context.Context, document.FileHandle, string) (*document.Document, error) {
		return nil, document.ErrIncorrectPassword
	}}
	s := New(deps)
	require.NoError(t, s.SelectFile(document.FileHandle{Name: "a.pdf", Data: []byte("%PDF")}))
	require.Error(t, s.Start(context.Background()))
	require.Equal(t, PhaseNeedsPassword, s.State().Phase())

	require.NoError(t, s.SelectFile(document.FileHandle{Name: "b.pdf", Data: []byte("%PDF")}))
	assert.Equal(t, Idle{}, s.State())
	assert.NoError(t, s.Err())
	assert.Equal(t, "b.pdf", s.Snapshot().File)
}
