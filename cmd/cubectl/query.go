package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/gridspatial/go-datacube/datacube"
)

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <file.nc> [file.nc ...]",
		Short: "Realize one variable across a set of NetCDF storage units",
		Long: `Opens the given files as storage units, stratifies them along the time
dimension, assembles a chunk graph for the requested variable and realizes
it, then prints the result's shape and basic statistics.

Dimension selections take the form name=begin:end (or name=value for a
point); temporal endpoints may be ISO-8601 dates. Flags may also come from
the config file or CUBECTL_* environment variables.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().String("variable", "", "variable to realize (required)")
	cmd.Flags().String("crs", "", "CRS of the spatial selections, proj4 format")
	cmd.Flags().StringArray("dim", nil, "dimension selection name=begin:end, repeatable")
	cmd.Flags().Int("parallel", 0, "task parallelism, 0 means GOMAXPROCS")
	cmd.Flags().Int("max-handles", 0, "open file handle limit, 0 means default")
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			panic(err)
		}
	})
	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	variable := viper.GetString("variable")
	if variable == "" {
		return fmt.Errorf("--variable is required")
	}
	query, err := parseQuery(viper.GetString("crs"), viper.GetStringSlice("dim"))
	if err != nil {
		return err
	}

	fc := datacube.NewFileCache(viper.GetInt("max-handles"))
	defer fc.Close()

	units := make([]datacube.StorageUnit, 0, len(args))
	for _, path := range args {
		u, err := fc.OpenNetCDF(path)
		if err != nil {
			return err
		}
		if _, ok := u.Variables()[variable]; !ok {
			log.Warn("file does not carry the variable, skipping",
				zap.String("path", path), zap.String("variable", variable))
			continue
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		return fmt.Errorf("no input carries variable %s", variable)
	}

	selection, err := translateFor(units[0], query)
	if err != nil {
		return err
	}

	if _, ok := units[0].Coordinates()["time"]; ok {
		if units, err = datacube.Stratify(units, "time", datacube.WithLogger(log)); err != nil {
			return err
		}
	}
	groups, err := datacube.GroupBySignature(units, variable)
	if err != nil {
		return err
	}
	group := datacube.LargestGroup(groups)
	if len(group) < len(units) {
		log.Warn("units with differing dimension sets were dropped",
			zap.Int("kept", len(group)), zap.Int("total", len(units)))
	}

	graph, err := datacube.BuildChunkGraph(group, variable, datacube.WithLogger(log))
	if err != nil {
		return err
	}
	exec := datacube.Parallel{Limit: viper.GetInt("parallel")}
	arr, err := exec.Submit(cmd.Context(), graph, nil)
	if err != nil {
		return err
	}
	if arr, err = arr.Sel(selection); err != nil {
		return err
	}
	printStats(cmd, variable, graph.Meta().NodataOrDefault(), arr)
	return nil
}

// translateFor converts the user query into the first unit's coordinate
// space and re-expresses it as label-range indexes.
func translateFor(u datacube.StorageUnit, q datacube.Query) (map[string]datacube.Index, error) {
	sel, err := datacube.TranslateQuery(q, datacube.StorageCRS(u), u.Coordinates())
	if err != nil {
		return nil, err
	}
	out := make(map[string]datacube.Index, len(sel))
	for dim, ds := range sel {
		if ds.ArrayRange != nil {
			out[dim] = *ds.ArrayRange
			continue
		}
		out[dim] = ds.Range
	}
	return out, nil
}

// parseQuery interprets repeated name=begin:end selections. Endpoints that
// parse as numbers become numeric labels; everything else stays a string
// for temporal parsing downstream.
func parseQuery(crs string, dims []string) (datacube.Query, error) {
	q := datacube.Query{CRS: crs, Dims: make(map[string]datacube.DimQuery, len(dims))}
	for _, spec := range dims {
		name, val, ok := strings.Cut(spec, "=")
		if !ok {
			return q, fmt.Errorf("malformed dimension selection %q, want name=begin:end", spec)
		}
		var dq datacube.DimQuery
		if begin, end, ranged := strings.Cut(val, ":"); ranged {
			if begin != "" {
				dq.Begin = parseEndpoint(begin)
			}
			if end != "" {
				dq.End = parseEndpoint(end)
			}
		} else {
			dq.Point = parseEndpoint(val)
		}
		q.Dims[name] = dq
	}
	return q, nil
}

func parseEndpoint(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// printStats reports the realized array's shape and the min/max/mean of
// its valid samples.
func printStats(cmd *cobra.Command, variable string, nodata float64, arr *datacube.Array) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %v\n", variable, arr.Shape())
	for _, dim := range arr.Dims {
		labels := arr.Labels[dim]
		if len(labels) == 0 {
			fmt.Fprintf(out, "  %-12s (empty)\n", dim)
			continue
		}
		fmt.Fprintf(out, "  %-12s %v .. %v\n", dim, labels[0], labels[len(labels)-1])
	}

	valid := make([]float64, 0, len(arr.Data.Elements))
	for _, v := range arr.Data.Elements {
		if math.IsNaN(v) || v == nodata {
			continue
		}
		valid = append(valid, v)
	}
	if len(valid) == 0 {
		fmt.Fprintln(out, "  all samples are nodata")
		return
	}
	fmt.Fprintf(out, "  valid=%d/%d min=%v max=%v mean=%v\n",
		len(valid), len(arr.Data.Elements),
		floats.Min(valid), floats.Max(valid),
		floats.Sum(valid)/float64(len(valid)))
}
