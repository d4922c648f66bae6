// Command tuning runs scripted drives headlessly and prints per-vehicle
// stability summaries, optionally persisting the samples to SQLite.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/config"
	"github.com/babushkai/gta-sub001/internal/shared/logger"
	"github.com/babushkai/gta-sub001/internal/simulation"
	"github.com/babushkai/gta-sub001/internal/telemetry"
	"github.com/babushkai/gta-sub001/internal/vehicle"
)

func main() {
	configPath := flag.String("config", os.Getenv("VDYN_CONFIG"), "path to config file")
	only := flag.String("scenario", "all", "scenario to run: all|"+strings.Join(scenarioNames(), "|"))
	kindFlag := flag.String("kind", "all", "vehicle kind: all|car|truck|motorcycle")
	dbPath := flag.String("db", "", "SQLite file to persist samples into (overrides telemetry.sqlitePath)")
	plotDir := flag.String("plots", "", "directory to write roll/pitch/lean traces into")
	flag.Parse()

	log := logger.New("tuning")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.SetLevel(cfg.LogLevel)

	profiles, err := config.Profiles()
	if err != nil {
		log.Fatal().Err(err).Msg("load vehicle profiles")
	}

	kinds := vehicle.Kinds()
	if *kindFlag != "all" {
		k, err := vehicle.ParseKind(*kindFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("bad -kind")
		}
		kinds = []vehicle.Kind{k}
	}
	names := scenarioNames()
	if *only != "all" {
		if _, ok := scenarios[*only]; !ok {
			log.Fatal().Str("scenario", *only).Msg("unknown scenario")
		}
		names = []string{*only}
	}

	path := cfg.Telemetry.SQLitePath
	if *dbPath != "" {
		path = *dbPath
	}
	var sink telemetry.Sink
	if path != "" {
		db, err := telemetry.OpenSQLite(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("open telemetry sink")
		}
		defer db.Close()
		sink = db
	}

	world := simulation.NewWorld(simulation.Options{
		Gravity:      mgl64.Vec3{0, cfg.Simulation.Gravity, 0},
		GroundHeight: cfg.Simulation.GroundHeight,
		MaxBodies:    cfg.Simulation.MaxBodies,
	})
	svc := vehicle.NewService(world, profiles, log)
	rec := telemetry.NewRecorder(cfg.Telemetry.Capacity, sink)
	svc.AddObserver(rec)

	var results []result
	for _, name := range names {
		for _, k := range kinds {
			res, err := runScenario(svc, scenarios[name], k, cfg.Simulation.DT())
			if err != nil {
				log.Fatal().Err(err).Msg("scenario failed")
			}
			results = append(results, res)
			log.Debug().Str("scenario", name).Str("kind", k.String()).Msg("scenario done")
		}
	}

	if err := rec.Flush(context.Background()); err != nil {
		log.Error().Err(err).Msg("flush samples")
	}
	printReport(os.Stdout, results, rec)
	if *plotDir != "" {
		for _, r := range results {
			path, err := writeTrace(*plotDir, r, rec.Samples(r.Handle))
			if err != nil {
				log.Error().Err(err).Str("scenario", r.Scenario).Msg("write trace")
				continue
			}
			log.Debug().Str("path", path).Msg("trace written")
		}
	}
	if sink != nil {
		log.Info().Str("run_id", rec.RunID()).Str("path", path).Msg("samples stored")
	}
}

func printReport(out io.Writer, results []result, rec *telemetry.Recorder) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tKIND\tSAMPLES\tMEAN|ROLL|\tP95|ROLL|\tMAX|ROLL|\tMAX|PITCH|\tMAX|LEAN|\tMEAN SPEED\tGROUNDED\tEMERGENCY\tFINAL POS")
	for _, r := range results {
		s := telemetry.Summarize(rec.Samples(r.Handle))
		p := r.Final.Position
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.0f%%\t%.0f%%\t(%.1f, %.1f, %.1f)\n",
			r.Scenario, r.Kind, s.Samples,
			s.MeanAbsRollDeg, s.P95AbsRollDeg, s.MaxAbsRollDeg, s.MaxAbsPitchDeg, s.MaxAbsLeanDeg,
			s.MeanSpeed, 100*s.GroundedFraction, 100*s.EmergencyFraction,
			p.X(), p.Y(), p.Z())
	}
	_ = tw.Flush()
}
