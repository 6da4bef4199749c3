package cmd

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-import/internal/csvimport"
	"github.com/dvloznov/statement-import/internal/document"
	"github.com/dvloznov/statement-import/internal/extraction"
	"github.com/spf13/cobra"
)

// maxPreview bounds the text printed by inspect.
const maxPreview = 2000

func newInspectCommand(e *env) *cobra.Command {
	var (
		opts importOptions
		raw  bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show how a statement file is read",
		Long: `Inspect runs the reading stage on a file and prints its media type,
encryption status and recovered text. For CSV files it lists the header row
and the matching preset. With --raw, non-CSV files are also sent to the
extraction service and the sanitized model response is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.dryRun = true
			if err := opts.validate(); err != nil {
				return err
			}
			fh, err := opts.fileHandle()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := e.services(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			doc, err := svc.Reader.Read(ctx, fh, opts.password)
			if err != nil {
				if document.IsPasswordError(err) {
					return fmt.Errorf("%s: pass --password to decrypt (%w)", fh.Name, err)
				}
				return err
			}

			fmt.Fprintf(e.out, "File:       %s\n", doc.Name)
			fmt.Fprintf(e.out, "Media type: %s\n", doc.MediaType)
			fmt.Fprintf(e.out, "Size:       %d bytes\n", len(doc.Data))
			fmt.Fprintf(e.out, "Encrypted:  %t\n", doc.Encrypted)

			if doc.MediaType == document.MediaCSV {
				headers := csvimport.Headers(doc.Text)
				fmt.Fprintf(e.out, "Headers:    %s\n", strings.Join(headers, ", "))
				if name, m, ok := svc.Presets.Detect(headers); ok {
					fmt.Fprintf(e.out, "Preset:     %s (date=%s description=%s amount=%s)\n", name, m.Date, m.Description, m.Amount)
				} else {
					fmt.Fprintln(e.out, "Preset:     none matches")
				}
			}

			if doc.Text != "" {
				fmt.Fprintf(e.out, "\n--- text ---\n%s\n", preview(doc.Text))
			}

			if raw && doc.MediaType != document.MediaCSV {
				req := extraction.RequestFromDocument(doc, opts.password)
				fmt.Fprintf(e.out, "\n--- prompt %s ---\n", extraction.PromptVersion)
				out, err := svc.Extraction.Extract(ctx, req)
				if err != nil {
					return fmt.Errorf("extraction: %w", err)
				}
				fmt.Fprintln(e.out, extraction.Sanitize(out))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.file, "file", "", "path to a local statement file")
	f.StringVar(&opts.uri, "uri", "", "gs:// URI of an uploaded statement")
	f.StringVar(&opts.password, "password", "", "password for an encrypted PDF")
	f.BoolVar(&raw, "raw", false, "print the raw extraction response")

	return cmd
}

func preview(text string) string {
	if len(text) <= maxPreview {
		return text
	}
	return text[:maxPreview] + fmt.Sprintf("\n... (%d more bytes)", len(text)-maxPreview)
}
