package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/vault"
)

// NewAlbumsCmd creates the albums command tree. Run without a subcommand it lists the albums.
func NewAlbumsCmd(provider AppProvider) *cobra.Command {
	var search, sortBy string

	cmd := &cobra.Command{
		Use:     "albums",
		Aliases: []string{"album"},
		Short:   "List your photo albums",
		Args:    cobra.NoArgs,
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}
			userID, err := currentUserID(app)
			if err != nil {
				return err
			}

			albums, err := app.Client.ListAlbums(cmd.Context(), userID)
			if err != nil {
				return vaultError(err, "failed to list albums")
			}
			albums = vault.Search(vault.SortAlbums(albums, vault.ParseAlbumSort(sortBy)), search, vault.AlbumFields)

			out := cmd.OutOrStdout()
			if len(albums) == 0 {
				fmt.Fprintln(out, "No albums found.")
				fmt.Fprintln(out, "\nCreate one with: allone albums create <title> <cover-image>")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCREATED AT")
			fmt.Fprintln(w, "──\t─────\t──────────")
			for _, a := range albums {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Title, vault.FormatShortDate(a.CreatedAt))
			}
			return w.Flush()
		}),
	}

	cmd.Flags().StringVar(&search, "search", "", "Only show albums matching this text")
	cmd.Flags().StringVar(&sortBy, "sort", "date", "Sort by date or name")

	cmd.AddCommand(newShowAlbumCmd(provider))
	cmd.AddCommand(newCreateAlbumCmd(provider))
	cmd.AddCommand(newAddPhotosCmd(provider))
	cmd.AddCommand(newDeletePhotoCmd(provider))

	return cmd
}

func newShowAlbumCmd(provider AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "show <album-id>",
		Short: "List the photos in an album",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}

			detail, err := app.Client.GetAlbum(cmd.Context(), args[0])
			if err != nil {
				return vaultError(err, "failed to load album")
			}

			out := cmd.OutOrStdout()
			printHeading(out, "Photos in %s:", detail.Album.Title)
			if len(detail.Photos) == 0 {
				fmt.Fprintln(out, "No photos yet.")
				fmt.Fprintf(out, "\nAdd some with: allone albums add-photos %s <image>...\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tURL\tADDED")
			fmt.Fprintln(w, "──\t───\t─────")
			for _, p := range detail.Photos {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.URL, vault.FormatShortDate(p.CreatedAt))
			}
			return w.Flush()
		}),
	}
}

func newCreateAlbumCmd(provider AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "create <title> <cover-image>",
		Short: "Create an album with a cover image",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			title := strings.TrimSpace(args[0])
			if title == "" {
				return fmt.Errorf("album title is required")
			}

			if err := requireAuth(cmd, app); err != nil {
				return err
			}
			userID, err := currentUserID(app)
			if err != nil {
				return err
			}

			cover, err := uploadFile(cmd, app, args[1])
			if err != nil {
				return err
			}

			err = app.Client.CreateAlbum(cmd.Context(), api.CreateAlbumRequest{
				UserID: userID,
				URL:    cover,
				Title:  title,
			})
			if err != nil {
				return vaultError(err, "failed to create album")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created album %q\n", title)
			return nil
		}),
	}
}

func newAddPhotosCmd(provider AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "add-photos <album-id> <image>...",
		Short: "Upload photos into an album",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}

			urls := make([]string, 0, len(args)-1)
			for _, path := range args[1:] {
				url, err := uploadFile(cmd, app, path)
				if err != nil {
					return err
				}
				urls = append(urls, url)
			}

			photos, err := app.Client.AddPhotos(cmd.Context(), args[0], urls)
			if err != nil {
				return vaultError(err, "failed to add photos")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %d photo(s)\n", max(len(photos), len(urls)))
			return nil
		}),
	}
}

func newDeletePhotoCmd(provider AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "rm-photo <photo-id>",
		Short: "Remove a photo from its album",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}

			if err := app.Client.DeletePhoto(cmd.Context(), args[0]); err != nil {
				return vaultError(err, "failed to delete photo")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Photo deleted")
			return nil
		}),
	}
}
