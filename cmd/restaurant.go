package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/restrobook/internal/booking"
	"github.com/example/restrobook/internal/store"
)

func newRestaurantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restaurant",
		Short: "Manage restaurants",
	}
	cmd.AddCommand(newRestaurantAddCmd())
	return cmd
}

func newRestaurantAddCmd() *cobra.Command {
	var r booking.Restaurant

	c := &cobra.Command{
		Use:   "add",
		Short: "Register a restaurant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			created, err := store.NewRepo(e.db).CreateRestaurant(ctx, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created restaurant id=%d name=%q\n", created.ID, created.Name)
			return nil
		},
	}

	c.Flags().StringVar(&r.Name, "name", "", "restaurant name")
	c.Flags().StringVar(&r.City, "city", "", "city")
	c.Flags().StringVar(&r.Area, "area", "", "area")
	c.Flags().StringVar(&r.Cuisine, "cuisine", "", "cuisine")
	_ = c.MarkFlagRequired("name")
	return c
}

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Manage a restaurant's table types",
	}
	cmd.AddCommand(newTableAddCmd())
	cmd.AddCommand(newTableListCmd())
	return cmd
}

func newTableAddCmd() *cobra.Command {
	var (
		restaurantID int64
		capacity     int
		quantity     int
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a table type; slots created afterwards include it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			t, err := store.NewRepo(e.db).AddTable(ctx, restaurantID, capacity, quantity)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created table id=%d capacity=%d quantity=%d\n", t.ID, t.Capacity, t.Quantity)
			return nil
		},
	}

	c.Flags().Int64Var(&restaurantID, "restaurant-id", 0, "restaurant id")
	c.Flags().IntVar(&capacity, "capacity", 0, "seats per table")
	c.Flags().IntVar(&quantity, "quantity", 1, "number of tables of this size")
	_ = c.MarkFlagRequired("restaurant-id")
	_ = c.MarkFlagRequired("capacity")
	return c
}

func newTableListCmd() *cobra.Command {
	var restaurantID int64

	c := &cobra.Command{
		Use:   "list",
		Short: "List a restaurant's table types",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			repo := store.NewRepo(e.db)
			if _, err := repo.GetRestaurant(ctx, restaurantID); err != nil {
				return err
			}
			tables, err := repo.ListTables(ctx, restaurantID)
			if err != nil {
				return err
			}
			seats := 0
			for _, t := range tables {
				fmt.Fprintf(cmd.OutOrStdout(), "id=%d capacity=%d quantity=%d\n", t.ID, t.Capacity, t.Quantity)
				seats += t.Capacity * t.Quantity
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d table types, %d seats per slot\n", len(tables), seats)
			return nil
		},
	}

	c.Flags().Int64Var(&restaurantID, "restaurant-id", 0, "restaurant id")
	_ = c.MarkFlagRequired("restaurant-id")
	return c
}
