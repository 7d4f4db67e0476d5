package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/restrobook/internal/booking"
	"github.com/example/restrobook/internal/store"
)

func newSlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Manage bookable slots",
	}
	cmd.AddCommand(newSlotAddCmd())
	cmd.AddCommand(newSlotListCmd())
	cmd.AddCommand(newSlotShowCmd())
	return cmd
}

func newSlotAddCmd() *cobra.Command {
	var (
		restaurantID int64
		date         string
		at           string
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Open a slot with the restaurant's current tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.Parse(time.DateOnly, date)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}
			ctx := context.Background()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			slot, err := store.NewRepo(e.db).CreateSlot(ctx, restaurantID, d, at)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created slot id=%d date=%s time=%s free_seats=%d\n",
				slot.ID, slot.Date.Format(time.DateOnly), slot.Time, slot.Inventory.Seats())
			return nil
		},
	}

	c.Flags().Int64Var(&restaurantID, "restaurant-id", 0, "restaurant id")
	c.Flags().StringVar(&date, "date", "", "slot date YYYY-MM-DD")
	c.Flags().StringVar(&at, "time", "19:00", "slot time HH:MM")
	_ = c.MarkFlagRequired("restaurant-id")
	_ = c.MarkFlagRequired("date")
	return c
}

func newSlotListCmd() *cobra.Command {
	var restaurantID int64

	c := &cobra.Command{
		Use:   "list",
		Short: "List a restaurant's slots by date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			slots, err := store.NewRepo(e.db).ListSlotsByRestaurant(ctx, restaurantID)
			if err != nil {
				return err
			}
			for _, day := range booking.GroupByDate(slots) {
				fmt.Fprintln(cmd.OutOrStdout(), day.Date.Format(time.DateOnly))
				for _, s := range day.Slots {
					fmt.Fprintf(cmd.OutOrStdout(), "  id=%d time=%s\n", s.ID, s.Time)
				}
			}
			return nil
		},
	}

	c.Flags().Int64Var(&restaurantID, "restaurant-id", 0, "restaurant id")
	_ = c.MarkFlagRequired("restaurant-id")
	return c
}

func newSlotShowCmd() *cobra.Command {
	var restaurantID, slotID int64

	c := &cobra.Command{
		Use:   "show",
		Short: "Show a slot's inventory and bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			repo := store.NewRepo(e.db)
			slot, err := repo.GetSlot(ctx, slotID, restaurantID)
			if err != nil {
				return err
			}
			bookings, err := repo.ListBookingsBySlot(ctx, slotID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "slot id=%d date=%s time=%s version=%d free_seats=%d\n",
				slot.ID, slot.Date.Format(time.DateOnly), slot.Time, slot.Version, slot.Inventory.Seats())
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TABLE\tCAPACITY\tREMAINING\tQUANTITY")
			for _, t := range slot.Inventory {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", t.TableID, t.Capacity, t.Remaining, t.Quantity)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, b := range bookings {
				fmt.Fprintf(out, "booking id=%d ref=%s party=%d seats=%d customer=%s\n",
					b.ID, b.Reference, b.PartySize, b.Seats(), b.CustomerEmail)
			}
			return nil
		},
	}

	c.Flags().Int64Var(&restaurantID, "restaurant-id", 0, "restaurant id")
	c.Flags().Int64Var(&slotID, "slot-id", 0, "slot id")
	_ = c.MarkFlagRequired("restaurant-id")
	_ = c.MarkFlagRequired("slot-id")
	return c
}
