package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/ripple/internal/store"
)

// Cookie is the continuation token a client round-trips between pulls to
// identify the CVR its replica was last synchronized against.
type Cookie struct {
	Order int64  `json:"order"`
	CVRID string `json:"cvrID"`
}

// PullRequest is the body of a pull. A nil cookie means the client has no
// local state.
type PullRequest struct {
	ClientGroupID string  `json:"clientGroupID"`
	Cookie        *Cookie `json:"cookie"`
}

// PatchOperation is one step of the client-side patch: clear all local
// state, put one entity, or delete one entity.
type PatchOperation struct {
	Op    string          `json:"op"`
	Key   string          `json:"key,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// PullResponse carries the next cookie, the lastMutationID advances observed
// since the base CVR, and the patch bringing the replica up to date.
type PullResponse struct {
	Cookie                *Cookie          `json:"cookie"`
	LastMutationIDChanges map[string]int64 `json:"lastMutationIDChanges"`
	Patch                 []PatchOperation `json:"patch"`
}

type pullTxResult struct {
	lists          []store.List
	shares         []store.Share
	todos          []store.Todo
	clientChanges  map[string]int64
	diff           cvrDiff
	nextCVR        CVR
	nextCVRVersion int64
}

// Pull computes the incremental diff between the client's acknowledged CVR
// and the current visible state, following the row-versioning pull
// algorithm.
func (s *Service) Pull(ctx context.Context, userID string, req PullRequest) (PullResponse, error) {
	baseCVR := newEmptyCVR()
	baseFound := false
	if req.Cookie != nil {
		if cached, ok := s.cache.get(req.Cookie.CVRID); ok {
			baseCVR = cached
			baseFound = true
		}
	}

	var result *pullTxResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := store.GetClientGroup(tx, req.ClientGroupID, userID)
		if err != nil {
			return err
		}

		listMeta, err := store.SearchLists(tx, userID)
		if err != nil {
			return err
		}
		clientMeta, err := store.SearchClients(tx, req.ClientGroupID)
		if err != nil {
			return err
		}

		listIDs := make([]string, 0, len(listMeta))
		for _, list := range listMeta {
			listIDs = append(listIDs, list.ID)
		}
		todoMeta, err := store.SearchTodos(tx, listIDs)
		if err != nil {
			return err
		}
		shareMeta, err := store.SearchShares(tx, listIDs)
		if err != nil {
			return err
		}

		nextCVR := CVR{
			entityList:   cvrEntriesFromSearch(listMeta),
			entityShare:  cvrEntriesFromSearch(shareMeta),
			entityTodo:   cvrEntriesFromSearch(todoMeta),
			entityClient: cvrEntriesFromSearch(clientMeta),
		}

		diff := diffCVR(baseCVR, nextCVR)
		if baseFound && isCVRDiffEmpty(diff) {
			// Nothing changed since the acknowledged CVR; no write happens
			// and the client keeps its cookie.
			return nil
		}

		lists, err := store.GetLists(tx, diff[entityList].Puts)
		if err != nil {
			return err
		}
		shares, err := store.GetShares(tx, diff[entityShare].Puts)
		if err != nil {
			return err
		}
		todos, err := store.GetTodos(tx, diff[entityTodo].Puts)
		if err != nil {
			return err
		}

		// Changed clients need no re-read; the next CVR already carries
		// their lastMutationIDs.
		clientChanges := map[string]int64{}
		for _, clientID := range diff[entityClient].Puts {
			clientChanges[clientID] = nextCVR[entityClient][clientID]
		}

		var cookieOrder int64
		if req.Cookie != nil {
			cookieOrder = req.Cookie.Order
		}
		nextCVRVersion := max(cookieOrder, group.CVRVersion) + 1

		group.CVRVersion = nextCVRVersion
		if err := store.PutClientGroup(tx, group); err != nil {
			return err
		}

		result = &pullTxResult{
			lists:          lists,
			shares:         shares,
			todos:          todos,
			clientChanges:  clientChanges,
			diff:           diff,
			nextCVR:        nextCVR,
			nextCVRVersion: nextCVRVersion,
		}
		return nil
	})
	if txErr != nil {
		s.logger.Error("pull failed",
			zap.String("clientGroupID", req.ClientGroupID),
			zap.String("userID", userID),
			zap.Error(txErr))
		return PullResponse{}, txErr
	}

	if result == nil {
		return PullResponse{
			Cookie:                req.Cookie,
			LastMutationIDChanges: map[string]int64{},
			Patch:                 []PatchOperation{},
		}, nil
	}

	cvrID := uuid.NewString()
	s.cache.put(cvrID, result.nextCVR)

	patch, err := buildPatch(result, baseFound)
	if err != nil {
		return PullResponse{}, err
	}

	s.logger.Debug("pull computed",
		zap.String("clientGroupID", req.ClientGroupID),
		zap.Int64("cvrVersion", result.nextCVRVersion),
		zap.Int("patchOps", len(patch)))

	return PullResponse{
		Cookie:                &Cookie{Order: result.nextCVRVersion, CVRID: cvrID},
		LastMutationIDChanges: result.clientChanges,
		Patch:                 patch,
	}, nil
}

type patchEntity struct {
	id    string
	value json.RawMessage
}

func buildPatch(result *pullTxResult, baseFound bool) ([]PatchOperation, error) {
	puts := map[string][]patchEntity{}
	for _, list := range result.lists {
		entity, err := marshalPatchEntity(entityList, list.ID, list)
		if err != nil {
			return nil, err
		}
		puts[entityList] = append(puts[entityList], entity)
	}
	for _, share := range result.shares {
		entity, err := marshalPatchEntity(entityShare, share.ID, share)
		if err != nil {
			return nil, err
		}
		puts[entityShare] = append(puts[entityShare], entity)
	}
	for _, todo := range result.todos {
		entity, err := marshalPatchEntity(entityTodo, todo.ID, todo)
		if err != nil {
			return nil, err
		}
		puts[entityTodo] = append(puts[entityTodo], entity)
	}

	patch := []PatchOperation{}
	if !baseFound {
		patch = append(patch, PatchOperation{Op: "clear"})
	}
	for _, name := range entityOrder {
		for _, id := range result.diff[name].Dels {
			patch = append(patch, PatchOperation{Op: "del", Key: name + "/" + id})
		}
		for _, entity := range puts[name] {
			patch = append(patch, PatchOperation{
				Op:    "put",
				Key:   name + "/" + entity.id,
				Value: entity.value,
			})
		}
	}

	return patch, nil
}

func marshalPatchEntity(name, id string, value interface{}) (patchEntity, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return patchEntity{}, fmt.Errorf("marshal %s/%s: %w", name, id, err)
	}
	return patchEntity{id: id, value: encoded}, nil
}
