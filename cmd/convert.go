package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/chibanzu/internal/azatable"
	"github.com/sells-group/chibanzu/internal/config"
	"github.com/sells-group/chibanzu/internal/emit"
	"github.com/sells-group/chibanzu/internal/fetcher"
	"github.com/sells-group/chibanzu/internal/jgd"
	"github.com/sells-group/chibanzu/internal/model"
	"github.com/sells-group/chibanzu/internal/parcel"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert the extracted shapefile and name list into chiban records",
	Long: `Joins each parcel polygon to its ward and town name, reduces it to a
centroid and writes one line per parcel to output.dir/output.file_name.
An existing output file is left untouched.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyConvertFlags(cmd, cfg)
		if err := cfg.Validate("convert"); err != nil {
			return err
		}

		in, err := resolveInputs(cmd, cfg)
		if err != nil {
			return err
		}
		_, err = convert(ctx, cfg, in)
		return err
	},
}

func init() {
	addConvertFlags(convertCmd)
	rootCmd.AddCommand(convertCmd)
}

func addConvertFlags(cmd *cobra.Command) {
	cmd.Flags().String("shapefile", "", "parcel shapefile (default: first input.shapefile_pattern match under input.extract_dir)")
	cmd.Flags().String("names", "", "ward/town name list, .xlsx or .csv (default: first input.names_pattern match)")
	cmd.Flags().String("output", "", "output file (default: output.dir/output.file_name)")
	cmd.Flags().Int("workers", 0, "parallel reduction workers (overrides convert.workers)")
	cmd.Flags().Int("zone", -1, "plane rectangular zone of the shapefile, 0 for lon/lat (overrides shapefile.zone)")
}

func applyConvertFlags(cmd *cobra.Command, c *config.Config) {
	if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
		c.Convert.Workers = w
	}
	if z, _ := cmd.Flags().GetInt("zone"); z >= 0 {
		c.Shapefile.Zone = z
	}
}

// convertInputs are the resolved file paths for one conversion.
type convertInputs struct {
	Shapefile string
	Names     string
	Output    string
}

func resolveInputs(cmd *cobra.Command, c *config.Config) (convertInputs, error) {
	shpPath, _ := cmd.Flags().GetString("shapefile")
	namesPath, _ := cmd.Flags().GetString("names")
	outPath, _ := cmd.Flags().GetString("output")
	return locateInputs(c, convertInputs{Shapefile: shpPath, Names: namesPath, Output: outPath})
}

// locateInputs fills any empty path in in from the configuration.
func locateInputs(c *config.Config, in convertInputs) (convertInputs, error) {
	var err error
	if in.Shapefile == "" {
		if in.Shapefile, err = fetcher.FindFile(c.Input.ExtractDir, c.Input.ShapefilePattern); err != nil {
			return in, eris.Wrap(err, "convert: locate shapefile")
		}
	}
	if in.Names == "" {
		if in.Names, err = fetcher.FindFile(c.Input.ExtractDir, c.Input.NamesPattern); err != nil {
			return in, eris.Wrap(err, "convert: locate name list")
		}
	}
	if in.Output == "" {
		in.Output = filepath.Join(c.Output.Dir, c.Output.FileName)
	}
	return in, nil
}

// convertResult summarizes one conversion.
type convertResult struct {
	Output emit.Result
	Stats  parcel.Stats
}

// convert builds the name table, streams the shapefile through the joiner
// and writes the output file plus any configured sinks.
func convert(ctx context.Context, c *config.Config, in convertInputs) (convertResult, error) {
	log := zap.L().With(zap.String("command", "convert"))
	var res convertResult

	for _, p := range []string{in.Shapefile, in.Names} {
		if err := fetcher.RequireFile(p); err != nil {
			return res, err
		}
	}
	sep, err := c.Output.SeparatorRune()
	if err != nil {
		return res, err
	}
	zone, err := jgd.ZoneByNumber(c.Shapefile.Zone)
	if err != nil {
		return res, err
	}

	table, err := azatable.LoadFile(ctx, in.Names, azatable.LoadOptions{
		Options: azatable.Options{
			CodeField:  c.Names.CodeField,
			NameField:  c.Names.NameField,
			Terminator: c.Names.Terminator,
		},
		SheetName: c.Names.Sheet,
		HeaderRow: c.Names.HeaderRow,
		Encoding:  c.Names.Encoding,
	})
	if err != nil {
		return res, err
	}
	log.Info("name list loaded",
		zap.String("path", in.Names),
		zap.Int("areas", table.Len()),
		zap.Int("wards", countWards(table.Entries())),
		zap.Int("duplicates", table.Duplicates()),
	)

	src, err := parcel.OpenShapefile(in.Shapefile, parcel.ShapefileOptions{
		CodeField:   c.Shapefile.CodeField,
		ChibanField: c.Shapefile.ChibanField,
		Encoding:    c.Input.Encoding,
		Zone:        zone,
	})
	if err != nil {
		return res, err
	}
	defer src.Close() //nolint:errcheck

	var sinks *sinkSet
	fill := func(e *emit.Emitter) error {
		opened, openErr := openSinks(ctx, c.Store, c.Dataset)
		if openErr != nil {
			return openErr
		}
		sinks = opened
		stats, joinErr := parcel.JoinAll(ctx, src, table,
			parcel.JoinOptions{Workers: c.Convert.Workers, BatchSize: c.Convert.BatchSize},
			func(r model.JoinedRecord) error {
				if err := e.Emit(r); err != nil {
					return err
				}
				return sinks.add(ctx, r)
			},
		)
		res.Stats = stats
		if joinErr != nil {
			return joinErr
		}
		return sinks.flush(ctx)
	}

	res.Output, err = emit.WriteFile(in.Output, emit.FileOptions{Separator: sep, Header: c.Output.Header}, fill)
	if finishErr := sinks.finish(ctx, err); finishErr != nil && err == nil {
		err = finishErr
	}
	sinks.close()
	if err != nil {
		return res, eris.Wrap(err, "convert")
	}

	if res.Output.Skipped {
		log.Info("skip: output already exists", zap.String("path", in.Output))
		return res, nil
	}
	log.Info("conversion complete",
		zap.String("output", res.Output.Path),
		zap.Int("areas", table.Len()),
		zap.Int("read", res.Stats.Read),
		zap.Int("non_polygon", res.Stats.NonPolygon),
		zap.Int("unmapped", res.Stats.Unmapped),
		zap.Int("degenerate", res.Stats.Degenerate),
		zap.Int("emitted", res.Stats.Emitted),
		zap.Int("stored", sinks.stored()),
	)
	return res, nil
}

func countWards(entries []model.AreaCodeEntry) int {
	wards := make(map[string]struct{})
	for _, e := range entries {
		wards[e.WardName] = struct{}{}
	}
	return len(wards)
}
