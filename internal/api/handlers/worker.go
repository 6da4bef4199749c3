package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-import/internal/document"
	"github.com/dvloznov/statement-import/internal/jobs"
	"github.com/dvloznov/statement-import/internal/session"
)

// ExtractJobHandler runs queued extraction jobs against their sessions.
// A job that ends waiting for a password, or whose session was reset
// meanwhile, still completes; the session phase is recorded on the job.
func ExtractJobHandler(registry *session.Registry) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		j, ok := job.(*jobs.ExtractJob)
		if !ok {
			return fmt.Errorf("ExtractJobHandler: unexpected job %T", job)
		}

		s, err := registry.Get(j.SessionID)
		if err != nil {
			return fmt.Errorf("ExtractJobHandler: %w", err)
		}

		switch j.GetType() {
		case jobs.JobTypeSubmitPassword:
			err = s.SubmitPassword(ctx, j.Password)
		default:
			err = s.Start(ctx)
		}
		j.Password = ""
		j.Phase = string(s.State().Phase())

		if document.IsPasswordError(err) || errors.Is(err, session.ErrSuperseded) {
			return nil
		}
		return err
	}
}
