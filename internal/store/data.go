package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The functions in this file form the transaction-scoped adapter over the
// relational store. Every function takes the *gorm.DB of the surrounding
// transaction; none of them opens its own.

// SearchLists returns id/rowversion pairs for every list the user owns or is
// shared on.
func SearchLists(tx *gorm.DB, userID string) ([]SearchResult, error) {
	shared := tx.Model(&Share{}).Select("list_id").Where("user_id = ?", userID)

	var results []SearchResult
	err := tx.Model(&List{}).
		Select("id", "row_version").
		Where("owner_id = ? OR id IN (?)", userID, shared).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("search lists: %w", err)
	}
	return results, nil
}

// SearchTodos returns id/rowversion pairs for todos in the given lists.
func SearchTodos(tx *gorm.DB, listIDs []string) ([]SearchResult, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	var results []SearchResult
	err := tx.Model(&Todo{}).
		Select("id", "row_version").
		Where("list_id IN ?", listIDs).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("search todos: %w", err)
	}
	return results, nil
}

// SearchShares returns id/rowversion pairs for shares on the given lists.
func SearchShares(tx *gorm.DB, listIDs []string) ([]SearchResult, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	var results []SearchResult
	err := tx.Model(&Share{}).
		Select("id", "row_version").
		Where("list_id IN ?", listIDs).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("search shares: %w", err)
	}
	return results, nil
}

// SearchClients returns one entry per client in the group, with the client's
// lastMutationID standing in for a row version.
func SearchClients(tx *gorm.DB, clientGroupID string) ([]SearchResult, error) {
	var clients []Client
	if err := tx.Where("client_group_id = ?", clientGroupID).Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}
	results := make([]SearchResult, 0, len(clients))
	for _, client := range clients {
		results = append(results, SearchResult{ID: client.ID, RowVersion: client.LastMutationID})
	}
	return results, nil
}

// GetLists loads full list rows for the given identifiers.
func GetLists(tx *gorm.DB, listIDs []string) ([]List, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	var lists []List
	if err := tx.Where("id IN ?", listIDs).Find(&lists).Error; err != nil {
		return nil, fmt.Errorf("get lists: %w", err)
	}
	return lists, nil
}

// GetTodos loads full todo rows for the given identifiers.
func GetTodos(tx *gorm.DB, todoIDs []string) ([]Todo, error) {
	if len(todoIDs) == 0 {
		return nil, nil
	}
	var todos []Todo
	if err := tx.Where("id IN ?", todoIDs).Find(&todos).Error; err != nil {
		return nil, fmt.Errorf("get todos: %w", err)
	}
	return todos, nil
}

// GetShares loads full share rows for the given identifiers.
func GetShares(tx *gorm.DB, shareIDs []string) ([]Share, error) {
	if len(shareIDs) == 0 {
		return nil, nil
	}
	var shares []Share
	if err := tx.Where("id IN ?", shareIDs).Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("get shares: %w", err)
	}
	return shares, nil
}

// GetClientGroup loads the group record, defaulting to a fresh record owned
// by the requesting user when absent. An existing record owned by a
// different user is an authorization failure.
func GetClientGroup(tx *gorm.DB, clientGroupID, userID string) (ClientGroup, error) {
	var group ClientGroup
	err := tx.Where("id = ?", clientGroupID).Take(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ClientGroup{ID: clientGroupID, UserID: userID, CVRVersion: 0}, nil
	}
	if err != nil {
		return ClientGroup{}, fmt.Errorf("get client group: %w", err)
	}
	if group.UserID != userID {
		return ClientGroup{}, ErrClientGroupOwnership
	}
	return group, nil
}

// PutClientGroup upserts the group record.
func PutClientGroup(tx *gorm.DB, group ClientGroup) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "cvr_version", "last_modified"}),
	}).Create(&group).Error
	if err != nil {
		return fmt.Errorf("put client group: %w", err)
	}
	return nil
}

// GetClient loads the client record, defaulting to lastMutationID 0 inside
// the requesting group when absent. An existing record owned by a different
// group is an authorization failure.
func GetClient(tx *gorm.DB, clientID, clientGroupID string) (Client, error) {
	var client Client
	err := tx.Where("id = ?", clientID).Take(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Client{ID: clientID, ClientGroupID: clientGroupID, LastMutationID: 0}, nil
	}
	if err != nil {
		return Client{}, fmt.Errorf("get client: %w", err)
	}
	if client.ClientGroupID != clientGroupID {
		return Client{}, ErrClientOwnership
	}
	return client, nil
}

// PutClient upserts the client record.
func PutClient(tx *gorm.DB, client Client) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"client_group_id", "last_mutation_id", "last_modified"}),
	}).Create(&client).Error
	if err != nil {
		return fmt.Errorf("put client: %w", err)
	}
	return nil
}

// ListAccessors returns the owner plus every share grantee of a list.
func ListAccessors(tx *gorm.DB, listID string) ([]string, error) {
	var owners []string
	if err := tx.Model(&List{}).Where("id = ?", listID).Pluck("owner_id", &owners).Error; err != nil {
		return nil, fmt.Errorf("list accessors: %w", err)
	}
	var grantees []string
	if err := tx.Model(&Share{}).Where("list_id = ?", listID).Pluck("user_id", &grantees).Error; err != nil {
		return nil, fmt.Errorf("list accessors: %w", err)
	}

	seen := make(map[string]struct{}, len(owners)+len(grantees))
	accessors := make([]string, 0, len(owners)+len(grantees))
	for _, userID := range append(owners, grantees...) {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		accessors = append(accessors, userID)
	}
	return accessors, nil
}

func requireListAccess(tx *gorm.DB, listID, userID string) error {
	var count int64
	if err := tx.Model(&List{}).Where("id = ?", listID).Count(&count).Error; err != nil {
		return fmt.Errorf("require list access: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: list %s", ErrNotFound, listID)
	}
	accessors, err := ListAccessors(tx, listID)
	if err != nil {
		return err
	}
	for _, accessor := range accessors {
		if accessor == userID {
			return nil
		}
	}
	return fmt.Errorf("%w: list %s", ErrListAccess, listID)
}
