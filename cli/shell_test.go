package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"inkwell/common"
	"inkwell/content"
	"inkwell/database"
	"inkwell/identity"
	"inkwell/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := common.OpenSqlite(":memory:", &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db, log))
	require.NoError(t, database.SeedCategories(db, []string{"General"}, log))
	return db
}

// runScript feeds lines to a fresh shell and returns everything it printed.
func runScript(t *testing.T, db *gorm.DB, lines ...string) string {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var out bytes.Buffer
	shell := NewShell(
		identity.NewStore(db, identity.HashSHA256),
		content.NewRepository(db, content.WithLogger(log)),
		strings.NewReader(strings.Join(lines, "\n")+"\n"),
		&out,
	)
	require.NoError(t, shell.Run(context.Background()))
	return out.String()
}

func TestShell_RegisterLoginCreateList(t *testing.T) {
	db := setupTestDB(t)

	out := runScript(t, db,
		"2", "alice", "pw",
		"1", "alice", "pw",
		"1", "Hello", "World",
		"2",
		"6",
		"3",
	)

	assert.Contains(t, out, "User registered successfully!")
	assert.Contains(t, out, "Welcome, alice!")
	assert.Contains(t, out, "Post created successfully!")
	assert.Contains(t, out, "[1] Hello (by alice)")
	assert.Contains(t, out, "You have been logged out.")
	assert.Contains(t, out, "Goodbye!")
}

func TestShell_DuplicateRegistrationAndBadLogin(t *testing.T) {
	db := setupTestDB(t)

	out := runScript(t, db,
		"2", "alice", "pw",
		"2", "alice", "other",
		"1", "alice", "wrong",
		"3",
	)

	assert.Contains(t, out, "That username is already taken.")
	assert.Contains(t, out, "Invalid username or password.")
	assert.NotContains(t, out, "Main Menu")
}

func TestShell_EditKeepsBlankFields(t *testing.T) {
	db := setupTestDB(t)

	out := runScript(t, db,
		"2", "alice", "pw",
		"1", "alice", "pw",
		"1", "Old title", "Body",
		"4", "1", "New title", "",
		"6", "3",
	)
	assert.Contains(t, out, "Post updated successfully!")

	var post models.Post
	require.NoError(t, db.First(&post).Error)
	assert.Equal(t, "New title", post.Title)
	assert.Equal(t, "Body", post.Content)
}

func TestShell_EditOthersPostRefused(t *testing.T) {
	db := setupTestDB(t)

	runScript(t, db,
		"2", "alice", "pw",
		"1", "alice", "pw",
		"1", "Alice's", "Body",
		"6", "3",
	)
	out := runScript(t, db,
		"2", "bob", "pw",
		"1", "bob", "pw",
		"4", "1",
		"5", "1",
		"6", "3",
	)

	assert.Equal(t, 2, strings.Count(out, "Only the post's author can do that."))
	assert.NotContains(t, out, "Enter new title")

	var n int64
	db.Model(&models.Post{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestShell_CommentApprovalAndCategories(t *testing.T) {
	db := setupTestDB(t)

	runScript(t, db,
		"2", "alice", "pw",
		"2", "bob", "pw",
		"1", "alice", "pw",
		"1", "Post", "Body",
		"6", "3",
	)

	// bob comments and tags; the comment stays hidden
	out := runScript(t, db,
		"1", "bob", "pw",
		"3", "1",
		"1", "Nice!",
		"2", "1",
		"0",
		"3", "1",
		"0",
		"6", "3",
	)
	assert.Contains(t, out, "Comment added!")
	assert.Contains(t, out, "Category added!")
	assert.Contains(t, out, "Categories: General")
	assert.Contains(t, out, "No comments yet.")
	assert.NotContains(t, out, "bob: Nice!")

	// alice approves it
	out = runScript(t, db,
		"1", "alice", "pw",
		"3", "1",
		"3", "1",
		"0",
		"3", "1",
		"0",
		"6", "3",
	)
	assert.Contains(t, out, "[1] bob: Nice!")
	assert.Contains(t, out, "Comment approved!")
	assert.Contains(t, out, "bob: Nice!\n")
}

func TestShell_ViewMissingPost(t *testing.T) {
	db := setupTestDB(t)

	out := runScript(t, db,
		"2", "alice", "pw",
		"1", "alice", "pw",
		"3", "42",
		"3", "abc",
		"6", "3",
	)

	assert.Contains(t, out, "Not found:")
	assert.Contains(t, out, "Invalid ID.")
}

func TestShell_EndOfInput(t *testing.T) {
	db := setupTestDB(t)

	out := runScript(t, db, "2", "alice")
	assert.Contains(t, out, "Goodbye!")
}

func TestShell_CancelledContextReturnsImmediately(t *testing.T) {
	db := setupTestDB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var out bytes.Buffer
	shell := NewShell(
		identity.NewStore(db, identity.HashSHA256),
		content.NewRepository(db, content.WithLogger(log)),
		strings.NewReader("2\nalice\npw\n2\nbob\npw\n3\n"),
		&out,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, shell.Run(ctx))
	assert.Contains(t, out.String(), "Goodbye!")
	assert.NotContains(t, out.String(), "Register a New User")
	assert.NotContains(t, out.String(), "Error:")

	var n int64
	db.Model(&models.User{}).Count(&n)
	assert.Equal(t, int64(0), n)
}

func TestShell_CancelWhileWaitingForInput(t *testing.T) {
	db := setupTestDB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	in, w := io.Pipe()
	t.Cleanup(func() { w.Close() })

	var out bytes.Buffer
	shell := NewShell(
		identity.NewStore(db, identity.HashSHA256),
		content.NewRepository(db, content.WithLogger(log)),
		in,
		&out,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- shell.Run(ctx) }()

	// nothing is ever typed; only the cancellation can end the shell
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Contains(t, out.String(), "Goodbye!")
	case <-time.After(2 * time.Second):
		t.Fatal("shell kept waiting for input after cancel")
	}
}
