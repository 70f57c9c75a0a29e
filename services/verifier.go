package services

import (
	"chat-service/contract"
	"chat-service/errors"
	"context"
	goerrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Outcome int

const (
	Verified Outcome = iota
	NotFound
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case NotFound:
		return "not_found"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

type Result struct {
	UserID  uuid.UUID
	Outcome Outcome
	Err     error
}

// Report holds one result per verified identifier, in request order.
type Report struct {
	Results []Result
}

func (r Report) Failures() []Result {
	var failures []Result
	for _, res := range r.Results {
		if res.Outcome != Verified {
			failures = append(failures, res)
		}
	}
	return failures
}

func (r Report) AllVerified() bool {
	return len(r.Failures()) == 0
}

// Err aggregates every failure of the report, or returns nil.
func (r Report) Err() error {
	failures := r.Failures()
	if len(failures) == 0 {
		return nil
	}
	pErr := &errors.ParticipantError{Failures: make([]errors.ParticipantFailure, 0, len(failures))}
	for _, f := range failures {
		reason := errors.ReasonNotFound
		if f.Outcome == Unavailable {
			reason = errors.ReasonUnavailable
		}
		detail := ""
		if f.Err != nil {
			detail = f.Err.Error()
		}
		pErr.Failures = append(pErr.Failures, errors.ParticipantFailure{
			UserID: f.UserID.String(),
			Reason: reason,
			Detail: detail,
		})
	}
	return pErr
}

// Verifier checks users against the identity service, one lookup per user,
// all of them in flight at once.
type Verifier struct {
	directory contract.IUserDirectory
	timeout   time.Duration
	log       *slog.Logger
}

func NewVerifier(directory contract.IUserDirectory, timeout time.Duration, log *slog.Logger) *Verifier {
	return &Verifier{directory: directory, timeout: timeout, log: log}
}

// Verify waits for every lookup, a failing one does not cancel the others.
// Callers are expected to pass distinct identifiers.
func (v *Verifier) Verify(ctx context.Context, ids []uuid.UUID) Report {
	report := Report{Results: make([]Result, len(ids))}
	if len(ids) == 0 {
		return report
	}

	var g errgroup.Group
	g.SetLimit(len(ids))
	for i, id := range ids {
		g.Go(func() error {
			report.Results[i] = v.lookup(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	if failures := report.Failures(); len(failures) > 0 {
		v.log.Info("Participant verification failed", "requested", len(ids), "failed", len(failures))
	}
	return report
}

func (v *Verifier) lookup(ctx context.Context, id uuid.UUID) Result {
	callCtx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	_, err := v.directory.GetUser(callCtx, id)
	switch {
	case err == nil:
		return Result{UserID: id, Outcome: Verified}
	case goerrors.Is(err, errors.ErrNotFound):
		return Result{UserID: id, Outcome: NotFound, Err: err}
	default:
		v.log.Warn("Identity lookup failed", "user_id", id, "error", err)
		return Result{UserID: id, Outcome: Unavailable, Err: err}
	}
}
