package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/ripple/internal/poke"
	"github.com/MarcoPoloResearchLab/ripple/internal/store"
)

// Mutation is one client-submitted operation. ID is the client-local
// sequence number the client expects to be processed next.
type Mutation struct {
	ID       int64           `json:"id"`
	ClientID string          `json:"clientID"`
	Name     string          `json:"name"`
	Args     json.RawMessage `json:"args"`
}

// PushRequest is the body of a push: an ordered batch of mutations from one
// client group.
type PushRequest struct {
	ClientGroupID string     `json:"clientGroupID"`
	Mutations     []Mutation `json:"mutations"`
}

// errAlreadyProcessed marks a mutation whose ID the client record has
// already passed; the replay commits nothing and affects nothing.
var errAlreadyProcessed = errors.New("sync: mutation already processed")

// isFatalMutationError reports whether the failure happened before the
// business operation could even be attempted: the client group or client
// belongs to someone else, or the mutation ID is ahead of the expected
// sequence. Everything else counts as a failure of the operation itself and
// is eligible for the error-mode replay.
func isFatalMutationError(err error) bool {
	return errors.Is(err, store.ErrClientGroupOwnership) ||
		errors.Is(err, store.ErrClientOwnership) ||
		errors.Is(err, ErrFutureMutation)
}

// Push processes the batch strictly in submitted order, each mutation in its
// own transaction, then pokes every affected list and user channel. A
// mutation failure never aborts the batch and never surfaces to the caller.
func (s *Service) Push(ctx context.Context, userID string, req PushRequest) error {
	affectedListIDs := mapset.NewSet[string]()
	affectedUserIDs := mapset.NewSet[string]()

	for _, mutation := range req.Mutations {
		affected, err := s.processMutation(ctx, userID, req.ClientGroupID, mutation, false)
		if err != nil {
			if isFatalMutationError(err) {
				// Ownership violations and future-mutation gaps are fatal for
				// this mutation; the batch moves on.
				s.logger.Warn("mutation rejected",
					zap.String("clientID", mutation.ClientID),
					zap.Int64("mutationID", mutation.ID),
					zap.Error(err))
				continue
			}

			// Any other failure of the business operation is replayed in
			// error mode so lastMutationID still advances and a poison
			// mutation cannot stall the client's queue.
			s.logger.Error("mutation failed, replaying in error mode",
				zap.String("clientID", mutation.ClientID),
				zap.Int64("mutationID", mutation.ID),
				zap.String("name", mutation.Name),
				zap.Error(err))
			if _, replayErr := s.processMutation(ctx, userID, req.ClientGroupID, mutation, true); replayErr != nil {
				s.logger.Error("error-mode replay failed",
					zap.String("clientID", mutation.ClientID),
					zap.Int64("mutationID", mutation.ID),
					zap.Error(replayErr))
			}
			continue
		}

		affectedListIDs.Append(affected.ListIDs...)
		affectedUserIDs.Append(affected.UserIDs...)
	}

	if s.notifier != nil {
		for _, listID := range affectedListIDs.ToSlice() {
			s.notifier.Publish(poke.ListChannel(listID))
		}
		for _, affectedUserID := range affectedUserIDs.ToSlice() {
			s.notifier.Publish(poke.UserChannel(affectedUserID))
		}
	}

	return nil
}

// processMutation runs one mutation attempt in its own transaction. In error
// mode the business logic is skipped entirely but the client's
// lastMutationID still advances to the next expected value.
func (s *Service) processMutation(ctx context.Context, userID, clientGroupID string, mutation Mutation, errorMode bool) (store.Affected, error) {
	var affected store.Affected

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := store.GetClientGroup(tx, clientGroupID, userID)
		if err != nil {
			return err
		}
		client, err := store.GetClient(tx, mutation.ClientID, clientGroupID)
		if err != nil {
			return err
		}

		nextMutationID := client.LastMutationID + 1

		if mutation.ID < nextMutationID {
			return errAlreadyProcessed
		}
		if mutation.ID > nextMutationID {
			return fmt.Errorf("%w: got %d, expected %d", ErrFutureMutation, mutation.ID, nextMutationID)
		}

		if !errorMode {
			affected, err = applyMutation(tx, userID, mutation)
			if err != nil {
				return err
			}
		}

		if err := store.PutClientGroup(tx, group); err != nil {
			return err
		}
		client.LastMutationID = nextMutationID
		return store.PutClient(tx, client)
	})

	if errors.Is(txErr, errAlreadyProcessed) {
		s.logger.Info("mutation already processed, skipping",
			zap.String("clientID", mutation.ClientID),
			zap.Int64("mutationID", mutation.ID))
		return store.Affected{}, nil
	}
	if txErr != nil {
		return store.Affected{}, txErr
	}
	if errorMode {
		return store.Affected{}, nil
	}
	return affected, nil
}
