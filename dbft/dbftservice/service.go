// Package dbftservice drives one consensus engine from event channels.
//
// The service owns its engine exclusively and applies inputs
// one at a time, in arrival order:
// authenticated messages, and block-persisted notifications
// from the host's block lifecycle.
// Timers live in the host; a timeout reaches the service
// only as a ChangeView message carrying the timeout reason.
package dbftservice

import (
	"context"
	"log/slog"

	"github.com/dbft-engine/dbft/dbft/dbftconsensus"
	"github.com/dbft-engine/dbft/dbft/dbftengine"
	"github.com/dbft-engine/dbft/dbft/dbftstore"
)

// Decision is one quorum evaluation outcome,
// annotated with the round it was produced in.
type Decision struct {
	Height uint64
	View   dbftconsensus.ViewNumber

	Decision dbftconsensus.QuorumDecision
}

// Config holds the dependencies to start a [Service].
type Config struct {
	Log *slog.Logger

	Engine *dbftengine.Engine

	// Optional; when set, the service persists a snapshot after
	// every accepted message and clears it when the round finalizes.
	Store dbftstore.SnapshotStore

	// Optional.
	Metrics *Metrics

	// Inbound authenticated messages.
	Messages <-chan dbftconsensus.SignedMessage

	// Heights at which the host persisted a block;
	// each triggers an advance to the next height.
	BlockPersisted <-chan uint64

	// Non-pending decisions, for the host to act on
	// (build a block, broadcast, start timers for the new view).
	Decisions chan<- Decision
}

// Service applies consensus inputs serially against one engine.
type Service struct {
	log *slog.Logger

	engine *dbftengine.Engine
	store  dbftstore.SnapshotStore

	metrics *Metrics

	messages       <-chan dbftconsensus.SignedMessage
	blockPersisted <-chan uint64
	decisions      chan<- Decision
}

func New(cfg Config) *Service {
	return &Service{
		log: cfg.Log,

		engine: cfg.Engine,
		store:  cfg.Store,

		metrics: cfg.Metrics,

		messages:       cfg.Messages,
		blockPersisted: cfg.BlockPersisted,
		decisions:      cfg.Decisions,
	}
}

// Run processes inputs until ctx is canceled.
// It is the single owner of the engine while running.
func (s *Service) Run(ctx context.Context) {
	s.observeRound()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Service stopping", "cause", context.Cause(ctx))
			return
		case m := <-s.messages:
			s.handleMessage(ctx, m)
		case height := <-s.blockPersisted:
			s.handleBlockPersisted(ctx, height)
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, m dbftconsensus.SignedMessage) {
	state := s.engine.State()
	height, view := state.Height(), state.View()

	decision, err := s.engine.ProcessMessage(m)
	if err != nil {
		if s.metrics != nil {
			s.metrics.MessagesRejected.Inc()
		}
		s.log.Debug(
			"Rejected consensus message",
			"kind", m.Kind().String(),
			"validator", m.Validator,
			"err", err,
		)
		return
	}

	if s.metrics != nil {
		s.metrics.MessagesAccepted.WithLabelValues(m.Kind().String()).Inc()
	}

	switch d := decision.(type) {
	case dbftconsensus.DecisionPending:
		s.persistRound(ctx, height)
		return
	case dbftconsensus.DecisionViewChange:
		if s.metrics != nil {
			s.metrics.ViewChanges.Inc()
		}
		s.log.Info(
			"View change agreed",
			"height", height,
			"new_view", d.NewView,
		)
		s.persistRound(ctx, height)
	case dbftconsensus.DecisionProposal:
		if d.Kind == dbftconsensus.KindCommit {
			// Commit quorum is terminal for the round;
			// the snapshot has served its purpose.
			if s.metrics != nil {
				s.metrics.CommitQuorums.Inc()
			}
			s.clearRound(ctx, height)
		} else {
			s.persistRound(ctx, height)
		}
	}

	s.observeRound()

	select {
	case <-ctx.Done():
	case s.decisions <- Decision{Height: height, View: view, Decision: decision}:
	}
}

func (s *Service) handleBlockPersisted(ctx context.Context, height uint64) {
	if err := s.engine.AdvanceHeight(height + 1); err != nil {
		s.log.Warn(
			"Ignoring block persisted notification",
			"height", height,
			"err", err,
		)
		return
	}

	if s.metrics != nil {
		s.metrics.HeightsAdvanced.Inc()
	}
	s.clearRound(ctx, height)
	s.observeRound()

	s.log.Info("Advanced to new height", "height", height+1)
}

func (s *Service) persistRound(ctx context.Context, height uint64) {
	if s.store == nil {
		return
	}
	if err := dbftengine.PersistEngine(ctx, s.store, dbftengine.RoundKey(height), s.engine); err != nil {
		s.log.Warn("Failed to persist consensus snapshot", "height", height, "err", err)
	}
}

func (s *Service) clearRound(ctx context.Context, height uint64) {
	if s.store == nil {
		return
	}
	if err := dbftengine.ClearSnapshot(ctx, s.store, dbftengine.RoundKey(height)); err != nil {
		s.log.Warn("Failed to clear consensus snapshot", "height", height, "err", err)
	}
}

func (s *Service) observeRound() {
	if s.metrics == nil {
		return
	}
	state := s.engine.State()
	s.metrics.CurrentHeight.Set(float64(state.Height()))
	s.metrics.CurrentView.Set(float64(state.View()))
}
