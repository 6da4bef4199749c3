package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/statement-import/internal/document"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/gcsuploader"
	"github.com/dvloznov/statement-import/internal/reconcile"
	"github.com/dvloznov/statement-import/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type importOptions struct {
	file     string
	uri      string
	password string

	preset      string
	dateCol     string
	descCol     string
	amountCol   string
	typeCol     string
	category    string
	accountID   string
	dryRun      bool
	maxAttempts int
}

func newImportCommand(e *env) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a statement file into an account",
		Long: `Import reads a local file or a gs:// object, extracts candidate
transactions and commits them to --account.

CSV files need a column mapping: either --preset or the --date-col,
--description-col and --amount-col flags. Without either, a preset whose
columns match the header row is used. Other files go to the extraction
service. Encrypted PDFs prompt for a password on stdin unless --password
is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return runImport(cmd.Context(), e, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.file, "file", "", "path to a local statement file")
	f.StringVar(&opts.uri, "uri", "", "gs:// URI of an uploaded statement")
	f.StringVar(&opts.password, "password", "", "password for an encrypted PDF")
	f.StringVar(&opts.preset, "preset", "", "column mapping preset for CSV files")
	f.StringVar(&opts.dateCol, "date-col", "", "CSV date column")
	f.StringVar(&opts.descCol, "description-col", "", "CSV description column")
	f.StringVar(&opts.amountCol, "amount-col", "", "CSV amount column")
	f.StringVar(&opts.typeCol, "type-col", "", "CSV income/expense column (optional)")
	f.StringVar(&opts.category, "category", "", "category for every imported transaction")
	f.StringVar(&opts.accountID, "account", "", "destination account id or name")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print candidates without committing")
	f.IntVar(&opts.maxAttempts, "password-attempts", 3, "password prompts before giving up")

	return cmd
}

func (o importOptions) validate() error {
	switch {
	case o.file == "" && o.uri == "":
		return errors.New("one of --file or --uri is required")
	case o.file != "" && o.uri != "":
		return errors.New("--file and --uri are mutually exclusive")
	case o.uri != "" && !strings.HasPrefix(o.uri, "gs://"):
		return fmt.Errorf("--uri must start with gs://, got %q", o.uri)
	case !o.dryRun && o.accountID == "":
		return errors.New("--account is required unless --dry-run is set")
	}
	return nil
}

func (o importOptions) mapping() *domain.ColumnMapping {
	m := domain.ColumnMapping{Date: o.dateCol, Description: o.descCol, Amount: o.amountCol, Type: o.typeCol}
	if m == (domain.ColumnMapping{}) {
		return nil
	}
	return &m
}

func (o importOptions) fileHandle() (document.FileHandle, error) {
	if o.uri != "" {
		return document.FileHandle{Name: gcsuploader.ExtractFilenameFromGCSURI(o.uri), URI: o.uri}, nil
	}
	data, err := os.ReadFile(o.file)
	if err != nil {
		return document.FileHandle{}, fmt.Errorf("reading %s: %w", o.file, err)
	}
	return document.FileHandle{Name: filepath.Base(o.file), Data: data}, nil
}

func runImport(ctx context.Context, e *env, opts importOptions) error {
	fh, err := opts.fileHandle()
	if err != nil {
		return err
	}

	svc, err := e.services(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	s := session.New(svc.SessionDependencies(session.LogNotifier{Logger: e.log}))
	if err := s.SelectFile(fh); err != nil {
		return err
	}

	mapping := opts.mapping()
	if opts.preset != "" {
		m, ok := svc.Presets.Lookup(opts.preset)
		if !ok {
			return fmt.Errorf("unknown preset %q", opts.preset)
		}
		mapping = &m
	}
	if mapping != nil {
		if err := s.SetMapping(*mapping); err != nil {
			return err
		}
	}

	if err := stepError(s, fh.Name, s.Start(ctx)); err != nil {
		return err
	}
	if opts.password != "" && s.State().Phase() == session.PhaseNeedsPassword {
		if err := stepError(s, fh.Name, s.SubmitPassword(ctx, opts.password)); err != nil {
			return err
		}
	}

	if err := promptPasswords(ctx, e, s, opts.maxAttempts); err != nil {
		return err
	}

	snap := s.Snapshot()
	if snap.Phase != session.PhaseReady {
		return fmt.Errorf("%s: %s", fh.Name, snap.Message)
	}

	if opts.category != "" {
		if err := s.Edit(func(b *reconcile.Batch) {
			for _, c := range b.Candidates() {
				if c.CategoryID == "" {
					b.SetCategory(c.ID, opts.category)
				}
			}
		}); err != nil {
			return err
		}
		snap = s.Snapshot()
	}

	printCandidates(e.out, snap)

	if opts.dryRun {
		return nil
	}

	n, err := s.Commit(ctx, opts.accountID)
	if err != nil {
		if st := s.Snapshot(); st.Phase == session.PhaseFailed {
			return fmt.Errorf("%s (%w)", st.Message, err)
		}
		return err
	}

	fmt.Fprintf(e.out, "Imported %d transactions into %s.\n", n, opts.accountID)
	return nil
}

// stepError reports a failed Start or SubmitPassword. Password errors are
// not failures: the session waits for another attempt.
func stepError(s *session.Session, name string, err error) error {
	if err == nil || document.IsPasswordError(err) {
		return nil
	}
	if snap := s.Snapshot(); snap.Phase == session.PhaseFailed {
		return fmt.Errorf("%s: %s: %w", name, snap.Message, err)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// passwordReader returns one password per call. Terminal input is read
// without echo.
func passwordReader(in io.Reader, out io.Writer) func() (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return func() (string, error) {
			pw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(out)
			return string(pw), err
		}
	}

	scanner := bufio.NewScanner(in)
	return func() (string, error) {
		if !scanner.Scan() {
			fmt.Fprintln(out)
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return scanner.Text(), nil
	}
}

// promptPasswords reads passwords from stdin while the session waits for one.
func promptPasswords(ctx context.Context, e *env, s *session.Session, attempts int) error {
	read := passwordReader(e.in, e.out)
	for i := 0; s.State().Phase() == session.PhaseNeedsPassword; i++ {
		if i >= attempts {
			return errors.New("no valid password given")
		}
		fmt.Fprintf(e.out, "%s. Password: ", s.Snapshot().Message)
		pw, err := read()
		if err != nil {
			return err
		}
		pw = strings.TrimSpace(pw)
		if pw == "" {
			continue
		}
		if err := stepError(s, s.Snapshot().File, s.SubmitPassword(ctx, pw)); err != nil {
			return err
		}
	}
	return nil
}

func printCandidates(out io.Writer, snap session.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
	for _, c := range snap.Candidates {
		date := c.Date.String()
		if c.Time != "" {
			date += " " + c.Time
		}
		category := c.CategoryID
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", date, c.Type, c.Amount.StringFixed(2), category, c.Description)
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d candidates, income %s, expense %s, %d uncategorized\n",
		len(snap.Candidates), snap.TotalIncome.StringFixed(2), snap.TotalExpense.StringFixed(2), snap.Uncategorized)
	if snap.SkippedRows > 0 {
		fmt.Fprintf(out, "%d of %d rows skipped:\n", snap.SkippedRows, snap.TotalRows)
		for _, skip := range snap.Skips {
			fmt.Fprintf(out, "  row %d: %s\n", skip.RowIndex, skip.Reason)
		}
	}
}
