package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dvloznov/statement-import/internal/gcsuploader"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const uploadPrefix = "imports"

func newUploadCommand(e *env) *cobra.Command {
	var (
		filePath string
		bucket   string
		object   string
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a statement file to GCS",
		Long: `Upload copies a local statement to the configured bucket and prints its
gs:// URI, which can be passed to "import --uri".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				return errors.New("--file is required")
			}
			if bucket == "" {
				bucket = e.cfg.Storage.Bucket
			}
			if bucket == "" {
				return errors.New("no bucket: pass --bucket or set storage.bucket")
			}
			if object == "" {
				object = gcsuploader.ObjectName(uploadPrefix, uuid.NewString(), filepath.Base(filePath), time.Now().UTC())
			}

			ctx := cmd.Context()
			gcs, err := gcsuploader.NewGCSStorageService(ctx, e.cfg.ClientOptions()...)
			if err != nil {
				return err
			}
			defer gcs.Close()

			e.log.Info().Str("bucket", bucket).Str("object", object).Str("file", filePath).Msg("Uploading file to GCS")

			uri, err := gcs.UploadFile(ctx, bucket, object, filePath)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}

			fmt.Fprintf(e.out, "Uploaded %s to %s\n", filePath, uri)
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "path to the local file")
	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket (defaults to storage.bucket)")
	cmd.Flags().StringVar(&object, "object", "", "object name (defaults to imports/<date>/<id>-<file>)")

	return cmd
}
