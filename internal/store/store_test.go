package store

import (
	"errors"
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "store.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&List{}, &Todo{}, &Share{}, &ClientGroup{}, &Client{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func mustCreateList(t *testing.T, db *gorm.DB, userID string, list List) {
	t.Helper()
	if _, err := CreateList(db, userID, list); err != nil {
		t.Fatalf("failed to create list: %v", err)
	}
}

func TestCreateListRejectsForeignOwner(t *testing.T) {
	db := openTestDatabase(t)

	_, err := CreateList(db, "u1", List{ID: "l1", OwnerID: "u2", Name: "not mine"})
	if !errors.Is(err, ErrListAccess) {
		t.Fatalf("expected list access error, got %v", err)
	}
}

func TestCreateListAffectsOwner(t *testing.T) {
	db := openTestDatabase(t)

	affected, err := CreateList(db, "u1", List{ID: "l1", OwnerID: "u1", Name: "groceries"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(affected.UserIDs) != 1 || affected.UserIDs[0] != "u1" {
		t.Fatalf("unexpected affected set: %#v", affected)
	}
	if len(affected.ListIDs) != 0 {
		t.Fatalf("createList should not affect list channels: %#v", affected)
	}
}

func TestUpdateTodoAdvancesRowVersion(t *testing.T) {
	db := openTestDatabase(t)
	mustCreateList(t, db, "u1", List{ID: "l1", OwnerID: "u1", Name: "groceries"})
	if _, err := CreateTodo(db, "u1", Todo{ID: "t1", ListID: "l1", Text: "milk"}); err != nil {
		t.Fatalf("failed to create todo: %v", err)
	}

	var before Todo
	if err := db.Take(&before, "id = ?", "t1").Error; err != nil {
		t.Fatalf("failed to load todo: %v", err)
	}

	text := "oat milk"
	if _, err := UpdateTodo(db, "u1", TodoUpdate{ID: "t1", Text: &text}); err != nil {
		t.Fatalf("failed to update todo: %v", err)
	}

	var after Todo
	if err := db.Take(&after, "id = ?", "t1").Error; err != nil {
		t.Fatalf("failed to reload todo: %v", err)
	}
	if after.RowVersion != before.RowVersion+1 {
		t.Fatalf("expected row version %d, got %d", before.RowVersion+1, after.RowVersion)
	}
	if after.Text != text {
		t.Fatalf("expected updated text, got %q", after.Text)
	}
}

func TestCreateTodoAppendsSortOrder(t *testing.T) {
	db := openTestDatabase(t)
	mustCreateList(t, db, "u1", List{ID: "l1", OwnerID: "u1", Name: "groceries"})

	if _, err := CreateTodo(db, "u1", Todo{ID: "t1", ListID: "l1", Text: "milk"}); err != nil {
		t.Fatalf("failed to create first todo: %v", err)
	}
	if _, err := CreateTodo(db, "u1", Todo{ID: "t2", ListID: "l1", Text: "eggs"}); err != nil {
		t.Fatalf("failed to create second todo: %v", err)
	}

	var second Todo
	if err := db.Take(&second, "id = ?", "t2").Error; err != nil {
		t.Fatalf("failed to load todo: %v", err)
	}
	if second.Sort != 2 {
		t.Fatalf("expected sort 2 for second todo, got %d", second.Sort)
	}
}

func TestDeleteListAffectsAllAccessors(t *testing.T) {
	db := openTestDatabase(t)
	mustCreateList(t, db, "u1", List{ID: "l1", OwnerID: "u1", Name: "groceries"})
	if _, err := CreateShare(db, "u1", Share{ID: "s1", ListID: "l1", UserID: "u2"}); err != nil {
		t.Fatalf("failed to create share: %v", err)
	}

	affected, err := DeleteList(db, "u2", "l1")
	if err != nil {
		t.Fatalf("grantee should be able to delete shared list: %v", err)
	}

	users := map[string]bool{}
	for _, userID := range affected.UserIDs {
		users[userID] = true
	}
	if !users["u1"] || !users["u2"] {
		t.Fatalf("expected both accessors affected, got %#v", affected.UserIDs)
	}
}

func TestDeleteListRequiresAccess(t *testing.T) {
	db := openTestDatabase(t)
	mustCreateList(t, db, "u1", List{ID: "l1", OwnerID: "u1", Name: "groceries"})

	_, err := DeleteList(db, "u3", "l1")
	if !errors.Is(err, ErrListAccess) {
		t.Fatalf("expected list access error, got %v", err)
	}

	_, err = DeleteList(db, "u1", "l-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDeleteShareMissing(t *testing.T) {
	db := openTestDatabase(t)

	_, err := DeleteShare(db, "u1", "s-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListAccessorsDeduplicates(t *testing.T) {
	db := openTestDatabase(t)
	mustCreateList(t, db, "u1", List{ID: "l1", OwnerID: "u1", Name: "groceries"})
	if _, err := CreateShare(db, "u1", Share{ID: "s1", ListID: "l1", UserID: "u2"}); err != nil {
		t.Fatalf("failed to create share: %v", err)
	}
	// Self-share: owner also appears as grantee.
	if _, err := CreateShare(db, "u1", Share{ID: "s2", ListID: "l1", UserID: "u1"}); err != nil {
		t.Fatalf("failed to create self share: %v", err)
	}

	accessors, err := ListAccessors(db, "l1")
	if err != nil {
		t.Fatalf("failed to list accessors: %v", err)
	}
	if len(accessors) != 2 {
		t.Fatalf("expected deduplicated accessors, got %#v", accessors)
	}
}

func TestSearchListsCoversOwnedAndShared(t *testing.T) {
	db := openTestDatabase(t)
	mustCreateList(t, db, "u1", List{ID: "l1", OwnerID: "u1", Name: "mine"})
	mustCreateList(t, db, "u2", List{ID: "l2", OwnerID: "u2", Name: "theirs"})
	mustCreateList(t, db, "u2", List{ID: "l3", OwnerID: "u2", Name: "shared with me"})
	if _, err := CreateShare(db, "u2", Share{ID: "s1", ListID: "l3", UserID: "u1"}); err != nil {
		t.Fatalf("failed to create share: %v", err)
	}

	results, err := SearchLists(db, "u1")
	if err != nil {
		t.Fatalf("failed to search lists: %v", err)
	}
	ids := map[string]bool{}
	for _, result := range results {
		ids[result.ID] = true
		if result.RowVersion < 1 {
			t.Fatalf("row version must be at least 1, got %d for %s", result.RowVersion, result.ID)
		}
	}
	if !ids["l1"] || !ids["l3"] || ids["l2"] {
		t.Fatalf("unexpected visible lists: %#v", ids)
	}
}

func TestSearchTodosEmptyInputShortCircuits(t *testing.T) {
	db := openTestDatabase(t)
	results, err := SearchTodos(db, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results for empty input, got %#v", results)
	}
}

func TestGetClientGroupOwnership(t *testing.T) {
	db := openTestDatabase(t)

	group, err := GetClientGroup(db, "cg1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if group.CVRVersion != 0 || group.UserID != "u1" {
		t.Fatalf("unexpected default group: %#v", group)
	}
	if err := PutClientGroup(db, group); err != nil {
		t.Fatalf("failed to put client group: %v", err)
	}

	if _, err := GetClientGroup(db, "cg1", "u2"); !errors.Is(err, ErrClientGroupOwnership) {
		t.Fatalf("expected ownership error, got %v", err)
	}
}

func TestGetClientOwnership(t *testing.T) {
	db := openTestDatabase(t)

	client, err := GetClient(db, "c1", "cg1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.LastMutationID != 0 {
		t.Fatalf("expected lastMutationID 0 for fresh client, got %d", client.LastMutationID)
	}
	client.LastMutationID = 1
	if err := PutClient(db, client); err != nil {
		t.Fatalf("failed to put client: %v", err)
	}

	if _, err := GetClient(db, "c1", "cg-other"); !errors.Is(err, ErrClientOwnership) {
		t.Fatalf("expected client ownership error, got %v", err)
	}
}

func TestPutClientGroupUpserts(t *testing.T) {
	db := openTestDatabase(t)

	group := ClientGroup{ID: "cg1", UserID: "u1", CVRVersion: 1}
	if err := PutClientGroup(db, group); err != nil {
		t.Fatalf("failed to create group: %v", err)
	}
	group.CVRVersion = 2
	if err := PutClientGroup(db, group); err != nil {
		t.Fatalf("failed to update group: %v", err)
	}

	stored, err := GetClientGroup(db, "cg1", "u1")
	if err != nil {
		t.Fatalf("failed to reload group: %v", err)
	}
	if stored.CVRVersion != 2 {
		t.Fatalf("expected cvr version 2, got %d", stored.CVRVersion)
	}
}
