// Package cli is the interactive menu-driven front end. It holds the current
// session and hands it to the repository on every call.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"inkwell/common"
	"inkwell/content"
	"inkwell/identity"
	"inkwell/session"
)

// errQuit ends the shell when input runs out.
var errQuit = errors.New("quit")

type Shell struct {
	ids     *identity.Store
	content *content.Repository

	in           *bufio.Reader
	out          io.Writer
	readPassword func() (string, error)
	// restore puts the terminal back in cooked mode after an interrupted
	// password read.
	restore func()

	session session.Session
}

// NewShell reads commands from in and writes to out. Passwords are read
// without echo when in is a terminal.
func NewShell(ids *identity.Store, repo *content.Repository, in io.Reader, out io.Writer) *Shell {
	s := &Shell{
		ids:     ids,
		content: repo,
		in:      bufio.NewReader(in),
		out:     out,
		session: session.Anonymous,
	}
	s.readPassword = s.readLine

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		s.readPassword = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(s.out)
			return string(b), err
		}
		if state, err := term.GetState(fd); err == nil {
			s.restore = func() { _ = term.Restore(fd, state) }
		}
	}
	return s
}

// Run shows the start screen until the user exits, input ends or ctx is
// cancelled.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(err)
		}

		s.println("\n===== Welcome to the Blog CLI =====")
		s.println("1. Login")
		s.println("2. Register")
		s.println("3. Exit")

		choice, err := s.prompt(ctx, "> ")
		if err != nil {
			return s.finish(err)
		}

		switch choice {
		case "1":
			err = s.login(ctx)
			if err == nil && s.session.Authenticated() {
				err = s.mainMenu(ctx)
			}
		case "2":
			err = s.register(ctx)
		case "3":
			s.println("Goodbye!")
			return nil
		default:
			s.println("Invalid choice.")
		}
		if err != nil {
			return s.finish(err)
		}
	}
}

func (s *Shell) finish(err error) error {
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.println("\nGoodbye!")
		return nil
	}
	return err
}

func (s *Shell) register(ctx context.Context) error {
	s.println("\n--- Register a New User ---")
	username, err := s.prompt(ctx, "Enter username: ")
	if err != nil {
		return err
	}
	password, err := s.promptPassword(ctx, "Enter password: ")
	if err != nil {
		return err
	}

	if _, err := s.ids.Register(ctx, username, password); err != nil {
		s.report(err)
		return nil
	}
	s.println("User registered successfully!")
	return nil
}

func (s *Shell) login(ctx context.Context) error {
	s.println("\n--- User Login ---")
	username, err := s.prompt(ctx, "Enter username: ")
	if err != nil {
		return err
	}
	password, err := s.promptPassword(ctx, "Enter password: ")
	if err != nil {
		return err
	}

	sess, err := s.ids.Authenticate(ctx, username, password)
	if err != nil {
		s.report(err)
		return nil
	}
	s.session = sess
	s.printf("\nWelcome, %s!\n", sess.Username)
	return nil
}

func (s *Shell) mainMenu(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.println("\n===== Main Menu =====")
		s.printf("Logged in as: %s\n", s.session.Username)
		s.println("1. Create a Post")
		s.println("2. List All Posts")
		s.println("3. View Post Details (and comment/categorize)")
		s.println("4. Edit a Post (Yours only)")
		s.println("5. Delete a Post (Yours only)")
		s.println("6. Logout")

		choice, err := s.prompt(ctx, "> ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = s.createPost(ctx)
		case "2":
			s.println("\n--- All Blog Posts ---")
			s.listPosts(ctx)
		case "3":
			err = s.viewPost(ctx)
		case "4":
			err = s.editPost(ctx)
		case "5":
			err = s.deletePost(ctx)
		case "6":
			s.session = session.Anonymous
			s.println("You have been logged out.")
			return nil
		default:
			s.println("Invalid choice.")
		}
		if err != nil {
			return err
		}
	}
}

func (s *Shell) createPost(ctx context.Context) error {
	s.println("\n--- Create a New Post ---")
	title, err := s.prompt(ctx, "Enter post title: ")
	if err != nil {
		return err
	}
	body, err := s.prompt(ctx, "Enter post content: \n")
	if err != nil {
		return err
	}

	if _, err := s.content.CreatePost(ctx, s.session, title, body); err != nil {
		s.report(err)
		return nil
	}
	s.println("Post created successfully!")
	return nil
}

func (s *Shell) listPosts(ctx context.Context) {
	posts, err := s.content.ListPosts(ctx)
	if err != nil {
		s.report(err)
		return
	}
	if len(posts) == 0 {
		s.println("No posts found.")
		return
	}
	for _, p := range posts {
		s.printf("[%d] %s (by %s)\n", p.ID, p.Title, p.AuthorUsername)
	}
}

func (s *Shell) editPost(ctx context.Context) error {
	s.println("\n--- Edit a Post ---")
	s.listPosts(ctx)
	postID, ok, err := s.promptID(ctx, "Enter the ID of the post you want to edit: ")
	if err != nil || !ok {
		return err
	}

	// an empty update checks existence and ownership before prompting
	if err := s.content.EditPost(ctx, s.session, postID, content.PostUpdate{}); err != nil {
		s.report(err)
		return nil
	}

	s.println("Enter new title (leave blank to keep current):")
	title, err := s.prompt(ctx, "> ")
	if err != nil {
		return err
	}
	s.println("Enter new content (leave blank to keep current):")
	body, err := s.prompt(ctx, "> ")
	if err != nil {
		return err
	}

	var update content.PostUpdate
	if title != "" {
		update.Title = &title
	}
	if body != "" {
		update.Content = &body
	}
	if update.Empty() {
		s.println("Nothing to change.")
		return nil
	}

	if err := s.content.EditPost(ctx, s.session, postID, update); err != nil {
		s.report(err)
		return nil
	}
	s.println("Post updated successfully!")
	return nil
}

func (s *Shell) deletePost(ctx context.Context) error {
	s.println("\n--- Delete a Post ---")
	s.listPosts(ctx)
	postID, ok, err := s.promptID(ctx, "Enter the ID of the post you want to delete: ")
	if err != nil || !ok {
		return err
	}

	if err := s.content.DeletePost(ctx, s.session, postID); err != nil {
		s.report(err)
		return nil
	}
	s.println("Post deleted successfully!")
	return nil
}

func (s *Shell) viewPost(ctx context.Context) error {
	s.println("\n--- View Post Details ---")
	s.listPosts(ctx)
	postID, ok, err := s.promptID(ctx, "Enter the ID of the post you want to view: ")
	if err != nil || !ok {
		return err
	}

	if !s.showPost(ctx, postID) {
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.println("\nOptions: [1] Add Comment, [2] Manage Categories, [3] Approve Comments, [0] Back to Main Menu")
		choice, err := s.prompt(ctx, "> ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = s.addComment(ctx, postID)
		case "2":
			err = s.manageCategories(ctx, postID)
		case "3":
			err = s.approveComments(ctx, postID)
		case "0":
			return nil
		default:
			s.println("Invalid choice.")
		}
		if err != nil {
			return err
		}
	}
}

func (s *Shell) showPost(ctx context.Context, postID uint) bool {
	view, err := s.content.GetPostView(ctx, postID)
	if err != nil {
		s.report(err)
		return false
	}

	rule := strings.Repeat("=", 50)
	s.println("\n" + rule)
	s.printf("Title: %s\n", view.Title)
	s.printf("Author: %s\n", view.AuthorUsername)
	s.println(strings.Repeat("-", 50))
	s.println(view.Content)
	s.println(rule)

	if len(view.Categories) > 0 {
		s.printf("Categories: %s\n", strings.Join(view.Categories, ", "))
	}

	s.println("\n--- Comments ---")
	if len(view.Comments) == 0 {
		s.println("No comments yet.")
	}
	for _, c := range view.Comments {
		s.printf("%s: %s\n", c.Username, c.Text)
	}
	return true
}

func (s *Shell) addComment(ctx context.Context, postID uint) error {
	text, err := s.prompt(ctx, "Write your comment: ")
	if err != nil {
		return err
	}

	if _, err := s.content.AddComment(ctx, s.session, postID, text); err != nil {
		s.report(err)
		return nil
	}
	s.println("Comment added! It will appear once the author approves it.")
	return nil
}

func (s *Shell) manageCategories(ctx context.Context, postID uint) error {
	categories, err := s.content.ListCategories(ctx)
	if err != nil {
		s.report(err)
		return nil
	}

	s.println("\n--- Manage Categories ---")
	for _, c := range categories {
		s.printf("[%d] %s\n", c.ID, c.Name)
	}

	categoryID, ok, err := s.promptID(ctx, "Enter Category ID to add to this post (or 0 to cancel): ")
	if err != nil || !ok {
		return err
	}

	if err := s.content.AddCategoryToPost(ctx, s.session, postID, categoryID); err != nil {
		s.report(err)
		return nil
	}
	s.println("Category added!")
	return nil
}

func (s *Shell) approveComments(ctx context.Context, postID uint) error {
	pending, err := s.content.ListPendingComments(ctx, s.session, postID)
	if err != nil {
		s.report(err)
		return nil
	}

	s.println("\n--- Pending Comments ---")
	if len(pending) == 0 {
		s.println("No comments awaiting approval.")
		return nil
	}
	for _, c := range pending {
		s.printf("[%d] %s: %s\n", c.ID, c.Username, c.Text)
	}

	commentID, ok, err := s.promptID(ctx, "Enter Comment ID to approve (or 0 to cancel): ")
	if err != nil || !ok {
		return err
	}

	if err := s.content.ApproveComment(ctx, s.session, commentID); err != nil {
		s.report(err)
		return nil
	}
	s.println("Comment approved!")
	return nil
}

// report prints a message for a failed operation.
func (s *Shell) report(err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// the loop exits on its next turn
	case errors.Is(err, identity.ErrInvalidCredentials):
		s.println("Invalid username or password.")
	case errors.Is(err, identity.ErrDuplicateUsername):
		s.println("That username is already taken.")
	case errors.Is(err, common.ErrForbidden):
		s.println("Only the post's author can do that.")
	case errors.Is(err, common.ErrNotFound):
		s.printf("Not found: %v\n", err)
	case errors.Is(err, common.ErrConflict):
		s.printf("Already exists: %v\n", err)
	default:
		s.printf("Error: %v\n", err)
	}
}

func (s *Shell) prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(s.out, label)
	return s.await(ctx, s.readLine)
}

func (s *Shell) promptPassword(ctx context.Context, label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.await(ctx, s.readPassword)
	if err != nil && ctx.Err() != nil && s.restore != nil {
		s.restore()
	}
	return line, err
}

// await runs a blocking read and gives up when ctx is done. The abandoned
// read is left behind; the shell never reads again after that.
func (s *Shell) await(ctx context.Context, read func() (string, error)) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := read()
		done <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.line, r.err
	}
}

// promptID reads a positive id. ok is false when the input is not a number
// or is 0, which cancels.
func (s *Shell) promptID(ctx context.Context, label string) (uint, bool, error) {
	line, err := s.prompt(ctx, label)
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		s.println("Invalid ID.")
		return 0, false, nil
	}
	return uint(id), id != 0, nil
}

func (s *Shell) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		if errors.Is(err, io.EOF) {
			return "", errQuit
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *Shell) println(a ...interface{}) {
	fmt.Fprintln(s.out, a...)
}

func (s *Shell) printf(format string, a ...interface{}) {
	fmt.Fprintf(s.out, format, a...)
}
