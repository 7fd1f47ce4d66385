package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/vault"
)

// NewDatesCmd creates the dates command tree
func NewDatesCmd(provider AppProvider) *cobra.Command {
	cmd := newCategoryCmd(provider, categoryCmd{
		use:     "dates",
		aliases: []string{"date"},
		noun:    "date",
		kind:    api.DateCategories,
	})

	cmd.AddCommand(newShowDatesCmd(provider))
	cmd.AddCommand(newAddDateCmd(provider))
	cmd.AddCommand(newDeleteDateCmd(provider))

	return cmd
}

func newShowDatesCmd(provider AppProvider) *cobra.Command {
	var search string
	var upcoming bool

	cmd := &cobra.Command{
		Use:   "show <category-id>",
		Short: "List the important dates in a category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}

			detail, err := app.Client.GetCategory(cmd.Context(), api.DateCategories, args[0])
			if err != nil {
				return vaultError(err, "failed to load category")
			}

			dates := vault.SortDates(detail.Dates)
			if upcoming {
				dates = vault.Upcoming(detail.Dates, time.Now())
			}
			dates = vault.Search(dates, search, vault.DateFields)

			out := cmd.OutOrStdout()
			printHeading(out, "Dates in %s:", detail.Category.Name)
			if len(dates) == 0 {
				fmt.Fprintln(out, "No dates found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tDATE\tREMINDER")
			fmt.Fprintln(w, "──\t─────\t────\t────────")
			for _, d := range dates {
				reminder := ""
				if d.Reminder {
					reminder = "on"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Title, vault.FormatLongDate(d.Date), reminder)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().StringVar(&search, "search", "", "Only show dates matching this text")
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "Only show dates from today on")

	return cmd
}

func newAddDateCmd(provider AppProvider) *cobra.Command {
	var title, date, description string
	var reminder bool

	cmd := &cobra.Command{
		Use:   "add <category-id>",
		Short: "Add an important date to a category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			title = strings.TrimSpace(title)
			if title == "" {
				return fmt.Errorf("title is required")
			}
			if _, err := time.Parse(time.DateOnly, date); err != nil {
				return fmt.Errorf("date must look like 2006-01-02")
			}

			if err := requireAuth(cmd, app); err != nil {
				return err
			}
			userID, err := currentUserID(app)
			if err != nil {
				return err
			}

			err = app.Client.CreateDate(cmd.Context(), api.CreateDateRequest{
				UserID:      userID,
				CategoryID:  args[0],
				Title:       title,
				Date:        date,
				Description: description,
				Reminder:    reminder,
			})
			if err != nil {
				return vaultError(err, "failed to add date")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %q on %s\n", title, vault.FormatLongDate(date))
			return nil
		}),
	}

	cmd.Flags().StringVar(&title, "title", "", "What happens on this date")
	cmd.Flags().StringVar(&date, "date", "", "Day in YYYY-MM-DD form")
	cmd.Flags().StringVar(&description, "description", "", "Details")
	cmd.Flags().BoolVar(&reminder, "reminder", false, "Ask the backend to send a reminder")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newDeleteDateCmd(provider AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <date-id>",
		Aliases: []string{"delete"},
		Short:   "Delete an important date",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requireAuth(cmd, app); err != nil {
				return err
			}
			userID, err := currentUserID(app)
			if err != nil {
				return err
			}

			if err := app.Client.DeleteDate(cmd.Context(), userID, args[0]); err != nil {
				return vaultError(err, "failed to delete date")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Date deleted")
			return nil
		}),
	}
}
