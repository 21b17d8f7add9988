package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/example/kigalisim/internal/db"
	"github.com/example/kigalisim/internal/engine/runner"
)

// writeSinks mirrors csvBytes to every sink named by rt.cfg.Sinks, in
// addition to the CSV file the caller already wrote to disk. Each sink is
// a pure I/O adapter; the engine core never sees these types.
func writeSinks(ctx context.Context, rt *runtime, runID uuid.UUID, scenario string, seed int64, rows []runner.EngineResult, csvBytes []byte) error {
	if rt.cfg.Sinks.S3Bucket != "" {
		if err := uploadToS3(ctx, rt.cfg.Sinks.S3Bucket, runID, scenario, csvBytes); err != nil {
			return fmt.Errorf("s3 sink: %w", err)
		}
	}
	if rt.db != nil {
		if err := persistToPostgres(ctx, rt.db, runID, scenario, seed, rows); err != nil {
			return fmt.Errorf("postgres sink: %w", err)
		}
	}
	return nil
}

// uploadToS3 pushes the rendered CSV to s3://bucket/kigalisim/<runID>/<scenario>.csv,
// following the same aws-sdk-go-v2/service/s3 client construction the
// teacher's CUR ingestion adapter uses for pulling objects.
func uploadToS3(ctx context.Context, bucket string, runID uuid.UUID, scenario string, csvBytes []byte) error {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	key := fmt.Sprintf("kigalisim/%s/%s.csv", runID, sanitizeKey(scenario))

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(csvBytes),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func sanitizeKey(s string) string {
	return url.QueryEscape(strings.ReplaceAll(s, " ", "_"))
}

// persistToPostgres inserts one simulation_runs row and one engine_results
// row per EngineResult, using the schema embedded in internal/db. A runID
// already recorded as "completed" is skipped rather than re-inserted, so a
// retried `kigalisim run` invocation with KIGALISIM_SINK_DSN set is
// idempotent.
func persistToPostgres(ctx context.Context, database *db.DB, runID uuid.UUID, scenario string, seed int64, rows []runner.EngineResult) error {
	switch status, err := database.RunStatus(ctx, runID); {
	case err == nil && status == "completed":
		return nil
	case err != nil && !db.IsNotFound(err):
		return fmt.Errorf("check existing run status: %w", err)
	}

	return database.WithTx(ctx, func(exec *sql.Tx) error {
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO simulation_runs (run_id, scenario, trials, seed, started_at, status)
			 VALUES ($1, $2, $3, $4, now(), 'completed')
			 ON CONFLICT (run_id) DO UPDATE SET status = 'completed', completed_at = now()`,
			runID, scenario, maxTrial(rows)+1, seed,
		); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("insert simulation_runs: run %s already recorded: %w", runID, err)
			}
			return fmt.Errorf("insert simulation_runs: %w", err)
		}

		for _, r := range rows {
			if _, err := exec.ExecContext(ctx,
				`INSERT INTO engine_results (
					run_id, trial, year, application, substance,
					domestic_kg, import_kg, export_kg, recycle_kg,
					population_units, prior_population_units, retired_units,
					recharge_emissions_tco2e, eol_emissions_tco2e, export_emissions_tco2e,
					ghg_consumption_tco2e, energy_kwh
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
				ON CONFLICT (run_id, trial, year, application, substance) DO NOTHING`,
				runID, r.Trial, r.Year, r.Application, r.Substance,
				r.Domestic.Value, r.Import.Value, r.Export.Value, r.Recycle.Value,
				r.Population.Value, r.PriorPopulation.Value, r.Retired.Value,
				r.RechargeEmissions.Value, r.EolEmissions.Value, r.ExportEmissions.Value,
				r.GhgConsumption.Value, r.Energy.Value,
			); err != nil {
				if db.IsForeignKeyViolation(err) {
					return fmt.Errorf("insert engine_results: run %s not recorded: %w", runID, err)
				}
				return fmt.Errorf("insert engine_results: %w", err)
			}
		}
		return nil
	})
}

func maxTrial(rows []runner.EngineResult) int {
	max := 0
	for _, r := range rows {
		if r.Trial > max {
			max = r.Trial
		}
	}
	return max
}
