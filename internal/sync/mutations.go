package sync

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/ripple/internal/store"
)

// Mutation names understood by the dispatcher. Unknown names are accepted
// and affect nothing, so older servers tolerate newer clients.
const (
	mutationCreateList  = "createList"
	mutationDeleteList  = "deleteList"
	mutationCreateTodo  = "createTodo"
	mutationUpdateTodo  = "updateTodo"
	mutationDeleteTodo  = "deleteTodo"
	mutationCreateShare = "createShare"
	mutationDeleteShare = "deleteShare"
)

func applyMutation(tx *gorm.DB, userID string, mutation Mutation) (store.Affected, error) {
	switch mutation.Name {
	case mutationCreateList:
		var list store.List
		if err := decodeArgs(mutation, &list); err != nil {
			return store.Affected{}, err
		}
		if list.ID == "" || list.OwnerID == "" {
			return store.Affected{}, fmt.Errorf("%w: %s requires id and ownerID", ErrInvalidArgs, mutation.Name)
		}
		return store.CreateList(tx, userID, list)

	case mutationDeleteList:
		listID, err := decodeStringArg(mutation)
		if err != nil {
			return store.Affected{}, err
		}
		return store.DeleteList(tx, userID, listID)

	case mutationCreateTodo:
		var todo store.Todo
		if err := decodeArgs(mutation, &todo); err != nil {
			return store.Affected{}, err
		}
		if todo.ID == "" || todo.ListID == "" {
			return store.Affected{}, fmt.Errorf("%w: %s requires id and listID", ErrInvalidArgs, mutation.Name)
		}
		return store.CreateTodo(tx, userID, todo)

	case mutationUpdateTodo:
		var update store.TodoUpdate
		if err := decodeArgs(mutation, &update); err != nil {
			return store.Affected{}, err
		}
		if update.ID == "" {
			return store.Affected{}, fmt.Errorf("%w: %s requires id", ErrInvalidArgs, mutation.Name)
		}
		return store.UpdateTodo(tx, userID, update)

	case mutationDeleteTodo:
		todoID, err := decodeStringArg(mutation)
		if err != nil {
			return store.Affected{}, err
		}
		return store.DeleteTodo(tx, userID, todoID)

	case mutationCreateShare:
		var share store.Share
		if err := decodeArgs(mutation, &share); err != nil {
			return store.Affected{}, err
		}
		if share.ID == "" || share.ListID == "" || share.UserID == "" {
			return store.Affected{}, fmt.Errorf("%w: %s requires id, listID and userID", ErrInvalidArgs, mutation.Name)
		}
		return store.CreateShare(tx, userID, share)

	case mutationDeleteShare:
		shareID, err := decodeStringArg(mutation)
		if err != nil {
			return store.Affected{}, err
		}
		return store.DeleteShare(tx, userID, shareID)

	default:
		return store.Affected{}, nil
	}
}

func decodeArgs(mutation Mutation, target interface{}) error {
	if err := json.Unmarshal(mutation.Args, target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArgs, mutation.Name, err)
	}
	return nil
}

func decodeStringArg(mutation Mutation) (string, error) {
	var value string
	if err := json.Unmarshal(mutation.Args, &value); err != nil {
		return "", fmt.Errorf("%w: %s expects a string id", ErrInvalidArgs, mutation.Name)
	}
	if value == "" {
		return "", fmt.Errorf("%w: %s expects a non-empty id", ErrInvalidArgs, mutation.Name)
	}
	return value, nil
}
