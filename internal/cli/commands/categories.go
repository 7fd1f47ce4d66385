package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/vault"
)

// categoryCmd describes one of the category collections exposed by the CLI
type categoryCmd struct {
	use     string
	aliases []string
	noun    string
	kind    api.CategoryKind
}

// newCategoryCmd builds the parent command for a category collection. Run
// without a subcommand it lists the categories.
func newCategoryCmd(provider AppProvider, c categoryCmd) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:     c.use,
		Aliases: c.aliases,
		Short:   fmt.Sprintf("List your %s categories", c.noun),
		Args:    cobra.NoArgs,
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			return runListCategories(cmd, app, c, search)
		}),
	}
	cmd.Flags().StringVar(&search, "search", "", "Only show categories matching this text")

	cmd.AddCommand(newCreateCategoryCmd(provider, c))
	return cmd
}

func runListCategories(cmd *cobra.Command, app *App, c categoryCmd, search string) error {
	if err := requireAuth(cmd, app); err != nil {
		return err
	}
	userID, err := currentUserID(app)
	if err != nil {
		return err
	}

	categories, err := app.Client.ListCategories(cmd.Context(), c.kind, userID)
	if err != nil {
		return vaultError(err, "failed to list categories")
	}
	categories = vault.Search(categories, search, vault.CategoryFields)

	out := cmd.OutOrStdout()
	if len(categories) == 0 {
		fmt.Fprintf(out, "No %s categories found.\n", c.noun)
		fmt.Fprintf(out, "\nCreate one with: allone %s new-category <name>\n", c.use)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
	fmt.Fprintln(w, "──\t────\t───────────")
	for _, category := range categories {
		fmt.Fprintf(w, "%s\t%s\t%s\n", category.ID, category.Name, category.Description)
	}
	return w.Flush()
}

func newCreateCategoryCmd(provider AppProvider, c categoryCmd) *cobra.Command {
	var description, color, thumbnail string

	cmd := &cobra.Command{
		Use:   "new-category <name>",
		Short: fmt.Sprintf("Create a %s category", c.noun),
		Args:  cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}
			userID, err := currentUserID(app)
			if err != nil {
				return err
			}

			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("category name is required")
			}

			req := api.CreateCategoryRequest{
				UserID:      userID,
				Name:        name,
				Color:       color,
				Description: description,
			}
			if thumbnail != "" {
				if req.Thumbnail, err = uploadFile(cmd, app, thumbnail); err != nil {
					return err
				}
			}

			if err := app.Client.CreateCategory(cmd.Context(), c.kind, req); err != nil {
				return vaultError(err, "failed to create category")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s category %q\n", c.noun, name)
			return nil
		}),
	}

	cmd.Flags().StringVar(&description, "description", "", "Category description")
	cmd.Flags().StringVar(&color, "color", "", "Category color")
	cmd.Flags().StringVar(&thumbnail, "thumbnail", "", "Path to a thumbnail image")

	return cmd
}

// vaultError turns a backend failure into a command error
func vaultError(err error, action string) error {
	if api.IsUnauthorized(err) {
		return fmt.Errorf("%s: your session may have expired. Run 'allone logout' and log in again", action)
	}
	return fmt.Errorf("%s: %s", action, api.MessageOr(err, "please try again"))
}

// printHeading writes a title line followed by a blank line
func printHeading(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, format+"\n\n", args...)
}

// uploadFile uploads a local image and returns its hosted URL
func uploadFile(cmd *cobra.Command, app *App, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	url, err := app.Client.UploadImage(cmd.Context(), filepath.Base(path), f)
	if err != nil {
		return "", vaultError(err, "failed to upload "+filepath.Base(path))
	}
	return url, nil
}
