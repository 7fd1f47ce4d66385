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

// NewDocsCmd creates the docs command tree
func NewDocsCmd(provider AppProvider) *cobra.Command {
	cmd := newCategoryCmd(provider, categoryCmd{
		use:     "docs",
		aliases: []string{"documents"},
		noun:    "document",
		kind:    api.DocumentCategories,
	})

	cmd.AddCommand(newShowDocsCmd(provider))
	cmd.AddCommand(newUploadDocCmd(provider))
	cmd.AddCommand(newDownloadDocCmd(provider))
	cmd.AddCommand(newDeleteDocCmd(provider))

	return cmd
}

func newShowDocsCmd(provider AppProvider) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "show <category-id>",
		Short: "List the documents in a category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}

			detail, err := app.Client.GetCategory(cmd.Context(), api.DocumentCategories, args[0])
			if err != nil {
				return vaultError(err, "failed to load category")
			}
			docs := vault.Search(detail.Documents, search, vault.DocumentFields)

			out := cmd.OutOrStdout()
			printHeading(out, "Documents in %s:", detail.Category.Name)
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents found.")
				fmt.Fprintf(out, "\nUpload one with: allone docs upload %s <file>\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tKIND\tSIZE\tUPLOADED")
			fmt.Fprintln(w, "──\t─────\t────\t────\t────────")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					d.ID,
					d.Title,
					vault.FileKind(d.FileType),
					vault.FormatFileSize(d.FileSize),
					vault.FormatShortDate(d.CreatedAt),
				)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().StringVar(&search, "search", "", "Only show documents matching this text")

	return cmd
}

func newUploadDocCmd(provider AppProvider) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "upload <category-id> <file>",
		Short: "Upload a file into a document category",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}
			userID, err := currentUserID(app)
			if err != nil {
				return err
			}

			path := args[1]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()

			name := filepath.Base(path)
			title = strings.TrimSpace(title)
			if title == "" {
				title = strings.TrimSuffix(name, filepath.Ext(name))
			}

			err = app.Client.UploadDocument(cmd.Context(), api.UploadDocumentRequest{
				UserID:     userID,
				CategoryID: args[0],
				Title:      title,
				Filename:   name,
				Content:    f,
			})
			if err != nil {
				return vaultError(err, "failed to upload document")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Uploaded %s as %q\n", name, title)
			return nil
		}),
	}

	cmd.Flags().StringVar(&title, "title", "", "Document title (defaults to the file name)")

	return cmd
}

func newDownloadDocCmd(provider AppProvider) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <document-id>",
		Short: "Download a document",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}

			body, _, err := app.Client.DocumentContent(cmd.Context(), args[0])
			if err != nil {
				return vaultError(err, "failed to download document")
			}
			defer body.Close()

			if output == "" || output == "-" {
				_, err = io.Copy(cmd.OutOrStdout(), body)
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			n, err := io.Copy(f, body)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Saved %s (%s)\n", output, vault.FormatFileSize(n))
			return nil
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write (default stdout)")

	return cmd
}

func newDeleteDocCmd(provider AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <document-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a document",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}
			userID, err := currentUserID(app)
			if err != nil {
				return err
			}

			if err := app.Client.DeleteDocument(cmd.Context(), userID, args[0]); err != nil {
				return vaultError(err, "failed to delete document")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Document deleted")
			return nil
		}),
	}
}
