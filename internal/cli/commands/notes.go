package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/vault"
)

// NewNotesCmd creates the notes command tree
func NewNotesCmd(provider AppProvider) *cobra.Command {
	cmd := newCategoryCmd(provider, categoryCmd{
		use:     "notes",
		aliases: []string{"note"},
		noun:    "note",
		kind:    api.NoteCategories,
	})

	cmd.AddCommand(newShowNotesCmd(provider))
	cmd.AddCommand(newAddNoteCmd(provider))
	cmd.AddCommand(newPinNoteCmd(provider))
	cmd.AddCommand(newDeleteNoteCmd(provider))

	return cmd
}

func newShowNotesCmd(provider AppProvider) *cobra.Command {
	var search string
	var full bool

	cmd := &cobra.Command{
		Use:   "show <category-id>",
		Short: "List the notes in a category, pinned first",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}

			detail, err := app.Client.GetCategory(cmd.Context(), api.NoteCategories, args[0])
			if err != nil {
				return vaultError(err, "failed to load category")
			}
			notes := vault.Search(vault.SortNotes(detail.Notes), search, vault.NoteFields)

			out := cmd.OutOrStdout()
			printHeading(out, "Notes in %s:", detail.Category.Name)
			if len(notes) == 0 {
				fmt.Fprintln(out, "No notes found.")
				fmt.Fprintf(out, "\nAdd one with: allone notes add %s --title <title>\n", args[0])
				return nil
			}

			if full {
				for _, n := range notes {
					pin := ""
					if n.IsPinned {
						pin = " [pinned]"
					}
					fmt.Fprintf(out, "%s  %s%s\n%s\n\n", n.ID, n.Title, pin, n.Content)
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tPINNED\tCREATED AT")
			fmt.Fprintln(w, "──\t─────\t──────\t──────────")
			for _, n := range notes {
				pinned := ""
				if n.IsPinned {
					pinned = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.Title, pinned, vault.FormatShortDate(n.CreatedAt))
			}
			return w.Flush()
		}),
	}

	cmd.Flags().StringVar(&search, "search", "", "Only show notes matching this text")
	cmd.Flags().BoolVar(&full, "full", false, "Print note contents")

	return cmd
}

func newAddNoteCmd(provider AppProvider) *cobra.Command {
	var title, content string

	cmd := &cobra.Command{
		Use:   "add <category-id>",
		Short: "Add a note to a category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}
			userID, err := currentUserID(app)
			if err != nil {
				return err
			}

			title = strings.TrimSpace(title)
			if title == "" {
				return fmt.Errorf("title is required")
			}

			err = app.Client.CreateNote(cmd.Context(), api.CreateNoteRequest{
				UserID:     userID,
				CategoryID: args[0],
				Title:      title,
				Content:    content,
			})
			if err != nil {
				return vaultError(err, "failed to add note")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Added note %q\n", title)
			return nil
		}),
	}

	cmd.Flags().StringVar(&title, "title", "", "Note title")
	cmd.Flags().StringVar(&content, "content", "", "Note text")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newPinNoteCmd(provider AppProvider) *cobra.Command {
	var unpin bool

	cmd := &cobra.Command{
		Use:   "pin <note-id>",
		Short: "Pin a note to the top of its category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}
			userID, err := currentUserID(app)
			if err != nil {
				return err
			}

			if err := app.Client.SetNotePinned(cmd.Context(), userID, args[0], !unpin); err != nil {
				return vaultError(err, "failed to update note")
			}
			if unpin {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Note unpinned")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Note pinned")
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&unpin, "unpin", false, "Unpin the note instead")

	return cmd
}

func newDeleteNoteCmd(provider AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <note-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}
			userID, err := currentUserID(app)
			if err != nil {
				return err
			}

			if err := app.Client.DeleteNote(cmd.Context(), userID, args[0]); err != nil {
				return vaultError(err, "failed to delete note")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Note deleted")
			return nil
		}),
	}
}
