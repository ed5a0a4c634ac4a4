package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fieldline/internal/config"
	"fieldline/internal/pipeline"
	"fieldline/internal/routing"
)

func newRouteCommand(ctx *commandContext) *cobra.Command {
	var (
		startLat float64
		startLng float64
	)

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Print a visit route over properties ready for the field",
		Long: "Orders properties awaiting a field visit by greedy nearest-neighbor " +
			"driving distance from the start point. Properties without coordinates " +
			"are listed last in queue order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				properties, err := store.PropertiesByStatus(cmd.Context(), pipeline.StatusReadyForField)
				if err != nil {
					return err
				}
				if len(properties) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No properties ready for field visits")
					return nil
				}

				start := routing.Point{Latitude: startLat, Longitude: startLng}
				ordered := routing.Order(properties, start)

				rows := make([][]string, 0, len(ordered))
				previous := start
				for i, property := range ordered {
					distance := ""
					if property.HasCoordinates() {
						point := routing.Point{Latitude: *property.Latitude, Longitude: *property.Longitude}
						distance = fmt.Sprintf("%.1f km", routing.Haversine(previous, point))
						previous = point
					}
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						property.FullAddress,
						property.CustomerName,
						distance,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Stop", "Address", "Customer", "Leg"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&startLat, "start-lat", 0, "Route start latitude")
	cmd.Flags().Float64Var(&startLng, "start-lng", 0, "Route start longitude")
	return cmd
}
