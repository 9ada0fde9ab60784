package main

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/mudler/remindbot/core/scheduler"
	"github.com/mudler/remindbot/pkg/config"
	"github.com/mudler/remindbot/services"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [owner]",
	Short: "Print the persisted reminders",
	Long:  `Prints the reminders of every owner, or of the given chat id, straight from the configured store.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := services.Store(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var reminders []*scheduler.Reminder
	if len(args) == 1 {
		owner, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("owner must be a numeric chat id: %w", err)
		}
		reminders, err = store.All(owner)
		if err != nil {
			return err
		}
	} else {
		reminders, err = store.Load()
		if err != nil {
			return err
		}
	}

	slices.SortStableFunc(reminders, func(a, b *scheduler.Reminder) int {
		if c := cmp.Compare(a.OwnerID, b.OwnerID); c != 0 {
			return c
		}
		return a.NextFireAt.Compare(b.NextFireAt)
	})

	if len(reminders) == 0 {
		fmt.Println("No reminders.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tID\tTIME\tPOLICY\tNEXT\tTEXT")
	for _, r := range reminders {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.OwnerID, r.ID, r.TimeOfDay, r.Policy,
			r.NextFireAt.In(cfg.Location()).Format("2006-01-02 15:04 MST"), r.Text)
	}
	return w.Flush()
}
