package store

import (
	"fmt"

	"gorm.io/gorm"
)

// Business operations behind the push handler's mutation dispatch. Each runs
// inside the caller's per-mutation transaction and reports which lists and
// users are affected so the poke notifier can fan out afterwards.
//
// Row versions are maintained here explicitly: inserts start at 1 and every
// update increments the stamp in the same statement, preserving the contract
// that any write to a row changes its version.

// CreateList inserts a list owned by the acting user.
func CreateList(tx *gorm.DB, userID string, list List) (Affected, error) {
	if list.OwnerID != userID {
		return Affected{}, fmt.Errorf("%w: cannot create list for another user", ErrListAccess)
	}
	list.RowVersion = 1
	if err := tx.Create(&list).Error; err != nil {
		return Affected{}, fmt.Errorf("create list: %w", err)
	}
	return Affected{UserIDs: []string{list.OwnerID}}, nil
}

// DeleteList removes a list the acting user can access. Every accessor loses
// visibility, so all of them are affected.
func DeleteList(tx *gorm.DB, userID, listID string) (Affected, error) {
	if err := requireListAccess(tx, listID, userID); err != nil {
		return Affected{}, err
	}
	accessors, err := ListAccessors(tx, listID)
	if err != nil {
		return Affected{}, err
	}
	if err := tx.Delete(&List{}, "id = ?", listID).Error; err != nil {
		return Affected{}, fmt.Errorf("delete list: %w", err)
	}
	return Affected{UserIDs: accessors}, nil
}

// CreateTodo inserts a todo at the end of its list's sort order.
func CreateTodo(tx *gorm.DB, userID string, todo Todo) (Affected, error) {
	var maxSort int64
	row := tx.Model(&Todo{}).Where("list_id = ?", todo.ListID).Select("COALESCE(MAX(ord), 0)").Row()
	if err := row.Scan(&maxSort); err != nil {
		return Affected{}, fmt.Errorf("create todo: %w", err)
	}

	todo.Sort = maxSort + 1
	todo.RowVersion = 1
	if err := tx.Create(&todo).Error; err != nil {
		return Affected{}, fmt.Errorf("create todo: %w", err)
	}
	return Affected{ListIDs: []string{todo.ListID}}, nil
}

// UpdateTodo applies a partial update to an existing todo.
func UpdateTodo(tx *gorm.DB, userID string, update TodoUpdate) (Affected, error) {
	todo, err := mustGetTodo(tx, update.ID)
	if err != nil {
		return Affected{}, err
	}
	if err := requireListAccess(tx, todo.ListID, userID); err != nil {
		return Affected{}, err
	}

	changes := map[string]interface{}{
		"row_version": gorm.Expr("row_version + 1"),
	}
	if update.Text != nil {
		changes["title"] = *update.Text
	}
	if update.Completed != nil {
		changes["complete"] = *update.Completed
	}
	if update.Sort != nil {
		changes["ord"] = *update.Sort
	}

	if err := tx.Model(&Todo{}).Where("id = ?", update.ID).Updates(changes).Error; err != nil {
		return Affected{}, fmt.Errorf("update todo: %w", err)
	}
	return Affected{ListIDs: []string{todo.ListID}}, nil
}

// DeleteTodo removes a todo from a list the acting user can access.
func DeleteTodo(tx *gorm.DB, userID, todoID string) (Affected, error) {
	todo, err := mustGetTodo(tx, todoID)
	if err != nil {
		return Affected{}, err
	}
	if err := requireListAccess(tx, todo.ListID, userID); err != nil {
		return Affected{}, err
	}
	if err := tx.Delete(&Todo{}, "id = ?", todoID).Error; err != nil {
		return Affected{}, fmt.Errorf("delete todo: %w", err)
	}
	return Affected{ListIDs: []string{todo.ListID}}, nil
}

// CreateShare grants another user access to a list the acting user can
// access. Both the list channel and the grantee's user channel are affected.
func CreateShare(tx *gorm.DB, userID string, share Share) (Affected, error) {
	if err := requireListAccess(tx, share.ListID, userID); err != nil {
		return Affected{}, err
	}
	share.RowVersion = 1
	if err := tx.Create(&share).Error; err != nil {
		return Affected{}, fmt.Errorf("create share: %w", err)
	}
	return Affected{ListIDs: []string{share.ListID}, UserIDs: []string{share.UserID}}, nil
}

// DeleteShare revokes a grant on a list the acting user can access.
func DeleteShare(tx *gorm.DB, userID, shareID string) (Affected, error) {
	shares, err := GetShares(tx, []string{shareID})
	if err != nil {
		return Affected{}, err
	}
	if len(shares) == 0 {
		return Affected{}, fmt.Errorf("%w: share %s", ErrNotFound, shareID)
	}
	share := shares[0]

	if err := requireListAccess(tx, share.ListID, userID); err != nil {
		return Affected{}, err
	}
	if err := tx.Delete(&Share{}, "id = ?", shareID).Error; err != nil {
		return Affected{}, fmt.Errorf("delete share: %w", err)
	}
	return Affected{ListIDs: []string{share.ListID}, UserIDs: []string{share.UserID}}, nil
}

func mustGetTodo(tx *gorm.DB, todoID string) (Todo, error) {
	todos, err := GetTodos(tx, []string{todoID})
	if err != nil {
		return Todo{}, err
	}
	if len(todos) == 0 {
		return Todo{}, fmt.Errorf("%w: todo %s", ErrNotFound, todoID)
	}
	return todos[0], nil
}
