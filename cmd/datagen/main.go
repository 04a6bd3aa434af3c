// Package main implements the datagen CLI tool for the BloomWatch platform.
//
// This tool produces synthetic observation series for demos, load tests,
// and local development, and can seed a models directory with placeholder
// artifacts so the API boots without trained models.
//
// Usage:
//
//	go run ./cmd/datagen --crop=almond --year=2025 --doy=40 --days=90
//	go run ./cmd/datagen --crop=cherry --full-year --out=cherry-2025.csv
//	go run ./cmd/datagen --bootstrap-models=./models
//
// Series output is CSV with one row per day: date, ndvi, gndvi, savi,
// evi, temperature_c, precipitation_mm.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"bloomwatch/internal/ensemble"
	"bloomwatch/internal/synth"
	"bloomwatch/internal/types"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run parses flags and dispatches, returning errors instead of exiting so
// tests can drive it end to end.
func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("datagen", flag.ContinueOnError)
	var (
		cropFlag  = fs.String("crop", "almond", "crop type: almond, apple, cherry")
		yearFlag  = fs.Int("year", time.Now().UTC().Year(), "calendar year to generate")
		doyFlag   = fs.Int("doy", time.Now().UTC().YearDay(), "day of year the window ends on")
		daysFlag  = fs.Int("days", 90, "window length in days")
		fullYear  = fs.Bool("full-year", false, "emit the full 365-day year instead of a trailing window")
		seedFlag  = fs.Int64("seed", 42, "random seed for reproducibility")
		outFlag   = fs.String("out", "-", "output path, or - for stdout")
		bootstrap = fs.String("bootstrap-models", "", "write placeholder model artifacts to this directory and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *bootstrap != "" {
		return bootstrapModels(*bootstrap, stdout)
	}

	crop := types.CropType(*cropFlag)
	if !crop.Valid() {
		return fmt.Errorf("invalid crop %q: must be one of almond, apple, cherry", *cropFlag)
	}
	if *daysFlag < 1 {
		return fmt.Errorf("days must be positive, got %d", *daysFlag)
	}

	gen, err := synth.NewGenerator(crop, *seedFlag)
	if err != nil {
		return err
	}

	var series types.ObservationSeries
	if *fullYear {
		series = gen.Year(*yearFlag, 0)
	} else {
		series = gen.Window(*yearFlag, *doyFlag, *daysFlag)
	}

	out := stdout
	if *outFlag != "-" {
		f, err := os.Create(*outFlag)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeCSV(out, series)
}

// bootstrapModels writes a placeholder artifact for every supported crop.
func bootstrapModels(dir string, stdout io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating models directory: %w", err)
	}
	now := time.Now().UTC()
	for _, crop := range types.AllCropTypes {
		artifact, err := synth.PlaceholderArtifact(crop, now)
		if err != nil {
			return err
		}
		if err := ensemble.WriteArtifact(dir, artifact); err != nil {
			return fmt.Errorf("writing artifact for %s: %w", crop, err)
		}
		fmt.Fprintf(stdout, "wrote placeholder artifact for %s\n", crop)
	}
	return nil
}

// writeCSV emits the series one row per day.
func writeCSV(w io.Writer, series types.ObservationSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "ndvi", "gndvi", "savi", "evi", "temperature_c", "precipitation_mm"}); err != nil {
		return err
	}
	for _, obs := range series {
		row := []string{
			obs.Date.Format(time.DateOnly),
			formatFloat(obs.NDVI),
			formatFloat(obs.GNDVI),
			formatFloat(obs.SAVI),
			formatFloat(obs.EVI),
			formatFloat(obs.TemperatureC),
			formatFloat(obs.Precipitation),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
