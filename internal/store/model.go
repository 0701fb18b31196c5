package store

import "time"

// EntityID values are chosen by clients and treated as opaque strings.

// List is a shareable collection of todos owned by one user.
type List struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	OwnerID      string    `gorm:"column:owner_id;size:36;not null;index" json:"ownerID"`
	Name         string    `gorm:"column:name;type:text;not null" json:"name"`
	RowVersion   int64     `gorm:"column:row_version;not null;default:1" json:"-"`
	LastModified time.Time `gorm:"column:last_modified;autoUpdateTime" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (List) TableName() string {
	return "lists"
}

// Todo is one item within a list.
type Todo struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	ListID       string    `gorm:"column:list_id;size:36;not null;index" json:"listID"`
	Text         string    `gorm:"column:title;type:text;not null" json:"text"`
	Completed    bool      `gorm:"column:complete;not null;default:false" json:"completed"`
	Sort         int64     `gorm:"column:ord;not null;default:0" json:"sort"`
	RowVersion   int64     `gorm:"column:row_version;not null;default:1" json:"-"`
	LastModified time.Time `gorm:"column:last_modified;autoUpdateTime" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Todo) TableName() string {
	return "todos"
}

// TodoUpdate carries a partial todo mutation; nil fields stay untouched.
type TodoUpdate struct {
	ID        string  `json:"id"`
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
	Sort      *int64  `json:"sort"`
}

// Share grants one user access to one list.
type Share struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	ListID       string    `gorm:"column:list_id;size:36;not null;index" json:"listID"`
	UserID       string    `gorm:"column:user_id;size:36;not null;index" json:"userID"`
	RowVersion   int64     `gorm:"column:row_version;not null;default:1" json:"-"`
	LastModified time.Time `gorm:"column:last_modified;autoUpdateTime" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Share) TableName() string {
	return "shares"
}

// ClientGroup is the synchronization identity of one replica instance.
// Created implicitly on first pull, never deleted.
type ClientGroup struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null"`
	UserID       string    `gorm:"column:user_id;size:36;not null"`
	CVRVersion   int64     `gorm:"column:cvr_version;not null;default:0"`
	LastModified time.Time `gorm:"column:last_modified;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (ClientGroup) TableName() string {
	return "client_groups"
}

// Client is one mutation-submitting actor within a client group.
// LastMutationID advances by exactly one per accepted mutation.
type Client struct {
	ID             string    `gorm:"column:id;primaryKey;size:36;not null"`
	ClientGroupID  string    `gorm:"column:client_group_id;size:36;not null;index"`
	LastMutationID int64     `gorm:"column:last_mutation_id;not null;default:0"`
	LastModified   time.Time `gorm:"column:last_modified;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Client) TableName() string {
	return "clients"
}

// SearchResult pairs an entity identifier with its current row version.
type SearchResult struct {
	ID         string
	RowVersion int64
}

// Affected collects the list and user identifiers whose replicated data
// changed as a side effect of a mutation.
type Affected struct {
	ListIDs []string
	UserIDs []string
}
