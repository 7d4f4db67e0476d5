package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/restrobook/internal/booking"
	"github.com/example/restrobook/internal/store"
)

func newQuoteCmd() *cobra.Command {
	var restaurantID, slotID int64
	var party int

	c := &cobra.Command{
		Use:   "quote",
		Short: "Show which tables a party would get, without booking",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			coord := booking.NewCoordinator(store.NewRepo(e.db), booking.NewSlotLocks(), e.logger.Named("booking"))
			a, err := coord.Quote(ctx, slotID, restaurantID, party)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "party=%d seats=%d wastage=%d tables=%d\n", a.PartySize, a.Seats, a.Wastage(), a.Tables)
			for _, sel := range a.Selections {
				fmt.Fprintf(cmd.OutOrStdout(), "  %d x %d-seat\n", sel.Count, sel.Capacity)
			}
			return nil
		},
	}

	c.Flags().Int64Var(&restaurantID, "restaurant-id", 0, "restaurant id")
	c.Flags().Int64Var(&slotID, "slot-id", 0, "slot id")
	c.Flags().IntVar(&party, "party-size", 2, "number of people")
	_ = c.MarkFlagRequired("restaurant-id")
	_ = c.MarkFlagRequired("slot-id")
	return c
}

func newBookCmd() *cobra.Command {
	var req booking.BookRequest

	c := &cobra.Command{
		Use:   "book",
		Short: "Book tables for a party",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			locks, closeLocks, err := e.locker(ctx)
			if err != nil {
				return err
			}
			defer closeLocks()

			coord := booking.NewCoordinator(store.NewRepo(e.db), locks, e.logger.Named("booking"),
				booking.WithLockWait(e.cfg.LockWait))
			b, err := coord.Book(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "booked id=%d ref=%s party=%d seats=%d\n", b.ID, b.Reference, b.PartySize, b.Seats())
			for _, t := range b.Tables {
				fmt.Fprintf(cmd.OutOrStdout(), "  table=%d %d x %d-seat\n", t.TableID, t.Count, t.Capacity)
			}
			return nil
		},
	}

	c.Flags().Int64Var(&req.RestaurantID, "restaurant-id", 0, "restaurant id")
	c.Flags().Int64Var(&req.SlotID, "slot-id", 0, "slot id")
	c.Flags().IntVar(&req.PartySize, "party-size", 2, "number of people")
	c.Flags().StringVar(&req.CustomerEmail, "email", "", "customer email")
	_ = c.MarkFlagRequired("restaurant-id")
	_ = c.MarkFlagRequired("slot-id")
	_ = c.MarkFlagRequired("email")
	return c
}
