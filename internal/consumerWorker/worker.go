package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"campusevents/internal/dto"
	"campusevents/internal/mailer"
	"campusevents/internal/rabbit"
	"campusevents/internal/repo"
)

// Reader drains the queue: delayed event-completion timers flip events to
// completed, notify messages go out by mail.
type Reader struct {
	RMQ    *rabbit.Client
	repo   repo.Repository
	mail   *mailer.Mailer
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, repo repo.Repository, mail *mailer.Mailer) *Reader {
	return &Reader{
		RMQ:  rmq,
		repo: repo,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("RabbitMQ Reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			var head struct {
				Kind string `json:"kind"`
			}
			if err := json.Unmarshal(body, &head); err != nil {
				zlog.Logger.Error().
					Err(err).
					Msgf("Failed to unmarshal message: %s", string(body))
				return err
			}

			switch head.Kind {
			case dto.KindEventComplete:
				return r.handleEventComplete(cctx, body)
			case dto.KindRegistrationConfirmed, dto.KindRegistrationCancelled:
				return r.handleNotify(body)
			default:
				zlog.Logger.Warn().Msgf("Unknown message kind %q, dropping", head.Kind)
				return nil
			}
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("RabbitMQ Reader stopped by context")
	}()
}

func (r *Reader) handleEventComplete(ctx context.Context, body []byte) error {
	var msg dto.EventCompleteMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zlog.Logger.Error().
			Err(err).
			Msgf("Failed to unmarshal completion message: %s", string(body))
		return err
	}

	zlog.Logger.Info().
		Str("event_id", msg.EventID.String()).
		Msg("Received event completion timer")

	completed, err := r.repo.CompleteEventTx(ctx, msg.EventID)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("event_id", msg.EventID.String()).
			Msg("Failed to complete event (DB operation)")
		return err
	}

	if !completed {
		// Cancelled, deleted, or the end time was pushed forward.
		zlog.Logger.Info().
			Str("event_id", msg.EventID.String()).
			Msg("Event not eligible for completion, skipping")
	}
	return nil
}

func (r *Reader) handleNotify(body []byte) error {
	var msg dto.NotifyMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zlog.Logger.Error().
			Err(err).
			Msgf("Failed to unmarshal notify message: %s", string(body))
		return err
	}

	var err error
	switch msg.Kind {
	case dto.KindRegistrationConfirmed:
		err = r.mail.SendRegistrationConfirmed(msg.StudentEmail, msg.StudentName, msg.EventTitle, msg.EventStart)
	case dto.KindRegistrationCancelled:
		err = r.mail.SendRegistrationCancelled(msg.StudentEmail, msg.StudentName, msg.EventTitle)
	}
	if err != nil {
		// Mail failures are not worth requeueing.
		zlog.Logger.Warn().
			Err(err).
			Str("email", msg.StudentEmail).
			Msg("Failed to send notification e-mail")
	}
	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
