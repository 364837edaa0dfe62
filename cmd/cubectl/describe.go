package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gridspatial/go-datacube/internal/backend/ncdf"
)

func newDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <file.nc> [file.nc ...]",
		Short: "Print the coordinates and variables of NetCDF storage units",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				info, err := ncdf.Describe(path)
				if err != nil {
					return err
				}
				printInfo(cmd, path, info)
			}
			return nil
		},
	}
}

func printInfo(cmd *cobra.Command, path string, info *ncdf.Info) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", path)
	if info.CRS != "" {
		fmt.Fprintf(out, "  crs: %s\n", info.CRS)
	}

	fmt.Fprintln(out, "  coordinates:")
	for _, name := range sortedKeys(info.Coordinates) {
		c := info.Coordinates[name]
		fmt.Fprintf(out, "    %-12s %s[%d] %v .. %v", name, c.Kind, c.Length, c.Begin, c.End)
		if c.Units != "" {
			fmt.Fprintf(out, " (%s)", c.Units)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "  variables:")
	for _, name := range sortedKeys(info.Variables) {
		v := info.Variables[name]
		fmt.Fprintf(out, "    %-12s %s (%s)", name, v.Kind, strings.Join(v.Dimensions, ", "))
		if v.HasNodata {
			fmt.Fprintf(out, " nodata=%v", v.Nodata)
		}
		if v.Units != "" {
			fmt.Fprintf(out, " units=%s", v.Units)
		}
		fmt.Fprintln(out)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
