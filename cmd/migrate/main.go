package main

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrationPattern matches 0001_name.sql.
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// errChecksumMismatch is returned when an applied migration file was edited.
var errChecksumMismatch = errors.New("applied migration was modified")

func main() {
	var (
		configPath    = flag.String("config", os.Getenv(config.EnvPrefix+"_CONFIG"), "Path to a YAML config file")
		projectID     = flag.String("project", "", "GCP project ID (overrides gcp.project)")
		datasetID     = flag.String("dataset", "", "BigQuery dataset ID (overrides bigquery.dataset)")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "", "Directory of migration files (defaults to the embedded set)")
		dryRun        = flag.Bool("dry-run", false, "List pending migrations without applying them")
	)
	flag.Parse()

	loader := config.NewLoader()
	v := loader.Viper()
	v.Set("store.backend", config.BackendBigQuery)
	if *projectID != "" {
		v.Set("gcp.project", *projectID)
	}
	if *datasetID != "" {
		v.Set("bigquery.dataset", *datasetID)
	}
	cfg, err := loader.Load(*configPath)
	if err != nil {
		bootLog := logger.New(logger.Options{})
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx := logger.WithContext(context.Background(), log)

	var fsys fs.FS
	if *migrationsDir != "" {
		fsys = os.DirFS(*migrationsDir)
	} else {
		fsys, _ = fs.Sub(embedded, "migrations")
	}

	migrations, err := readMigrations(fsys, cfg.GCP.Project, cfg.BigQuery.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	client, err := bigquery.NewClient(ctx, cfg.GCP.Project, cfg.ClientOptions()...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	m := &migrator{client: client, project: cfg.GCP.Project, dataset: cfg.BigQuery.Dataset, appliedBy: *appliedBy, log: log}
	log.Info().Str("project", m.project).Str("dataset", m.dataset).Msg("Connected to BigQuery")

	if err := m.run(ctx, migrations, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

type migrator struct {
	client    *bigquery.Client
	project   string
	dataset   string
	appliedBy string
	log       zerolog.Logger
}

func (m *migrator) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.project, m.dataset)
}

func (m *migrator) run(ctx context.Context, migrations []Migration, dryRun bool) error {
	if err := m.exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+m.table()+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, nil); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	m.log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	todo, err := pending(migrations, applied)
	if err != nil {
		return err
	}
	if len(todo) == 0 {
		m.log.Info().Msg("No new migrations to apply. Database is up to date.")
		return nil
	}

	for _, mig := range todo {
		log := m.log.With().Int("version", mig.Version).Str("name", mig.Name).Logger()
		if dryRun {
			log.Info().Msg("Pending")
			continue
		}

		log.Info().Msg("Applying migration")
		if err := m.exec(ctx, mig.SQL, nil); err != nil {
			return fmt.Errorf("executing %s: %w", mig.Filename, err)
		}

		if err := m.exec(ctx, `
			INSERT INTO `+m.table()+`
			(version, name, applied_at, checksum, applied_by)
			VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
		`, []bigquery.QueryParameter{
			{Name: "version", Value: mig.Version},
			{Name: "name", Value: mig.Name},
			{Name: "checksum", Value: mig.Checksum},
			{Name: "applied_by", Value: m.appliedBy},
		}); err != nil {
			return fmt.Errorf("recording %s: %w", mig.Filename, err)
		}
		log.Info().Msg("Migration applied")
	}

	if !dryRun {
		m.log.Info().Int("count", len(todo)).Msg("Successfully applied migrations")
	}
	return nil
}

func (m *migrator) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := m.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func (m *migrator) applied(ctx context.Context) ([]AppliedMigration, error) {
	it, err := m.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + m.table() + `
		ORDER BY version ASC
	`).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

// readMigrations loads every NNNN_name.sql file of fsys in version order,
// substituting {{PROJECT_ID}} and {{DATASET_ID}}. The checksum covers the
// file before substitution so one migration set can serve many datasets.
func readMigrations(fsys fs.FS, project, dataset string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, _ := strconv.Atoi(matches[1])
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// pending returns the migrations not yet applied. An applied migration whose
// file no longer matches its recorded checksum stops the run.
func pending(migrations []Migration, applied []AppliedMigration) ([]Migration, error) {
	done := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		done[am.Version] = am
	}

	var todo []Migration
	for _, mig := range migrations {
		am, ok := done[mig.Version]
		if !ok {
			todo = append(todo, mig)
			continue
		}
		if am.Checksum != "" && am.Checksum != mig.Checksum {
			return nil, fmt.Errorf("%s: %w", mig.Filename, errChecksumMismatch)
		}
	}
	return todo, nil
}
