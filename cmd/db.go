package cmd

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"go/token"
	"io"
	"os"
	"os/exec"
	"reevdb/config"
	"reevdb/db"
	"reevdb/db/backup"
	"reevdb/db/migrations"
	"reevdb/db/pgw"
	"reevdb/db/schema"
	"reevdb/log"
	"reevdb/oops"
	"strings"
	"text/template"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var Db *cobra.Command

func init() {
	Db = &cobra.Command{
		Use:   "db",
		Short: "Manage the database schema",
	}

	var upgradeBackup, upgradeDryRun bool
	upgradeCmd := &cobra.Command{
		Use:     "upgrade [target]",
		Aliases: []string{"migrate"},
		Short:   "Apply migrations up to target (default: head)",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgrade(cmd.Context(), cmd.OutOrStdout(), argOr(args, "head"), upgradeBackup, upgradeDryRun)
		},
	}
	upgradeCmd.Flags().BoolVar(&upgradeBackup, "backup", false, "back up the database to S3 first")
	upgradeCmd.Flags().BoolVar(&upgradeDryRun, "dry-run", false, "print the plan without running it")

	var downgradeBackup, downgradeDryRun bool
	downgradeCmd := &cobra.Command{
		Use:     "downgrade [target]",
		Aliases: []string{"rollback"},
		Short:   "Revert migrations down to target (default: -1)",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return downgrade(cmd.Context(), cmd.OutOrStdout(), argOr(args, "-1"), downgradeBackup, downgradeDryRun)
		},
	}
	downgradeCmd.Flags().BoolVar(&downgradeBackup, "backup", false, "back up the database to S3 first")
	downgradeCmd.Flags().BoolVar(&downgradeDryRun, "dry-run", false, "print the plan without running it")

	var currentJson bool
	currentCmd := &cobra.Command{
		Use:   "current",
		Short: "Print the current revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return current(cmd.OutOrStdout(), currentJson)
		},
	}
	currentCmd.Flags().BoolVar(&currentJson, "json", false, "print as json")

	var historyJson bool
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List migrations from base to head",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return history(cmd.OutOrStdout(), historyJson)
		},
	}
	historyCmd.Flags().BoolVar(&historyJson, "json", false, "print as json")

	headsCmd := &cobra.Command{
		Use:   "heads",
		Short: "Print the head revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			graph, err := migrations.NewGraph(migrations.All)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (head)\n", graph.Head())
			return nil
		},
	}

	stampCmd := &cobra.Command{
		Use:   "stamp <target>",
		Short: "Set the current revision without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return stamp(cmd.OutOrStdout(), args[0])
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Fail unless the database is at head",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConn(func(conn *pgw.Conn) error {
				return db.EnsureLatestMigration(conn)
			})
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the live schema with the schema the applied migrations declare",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return verify(cmd.OutOrStdout())
		},
	}

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump the schema to the structure file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return dumpStructure(config.Cfg.Migrations.StructureFile)
		},
	}

	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the database to S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackup(cmd.Context(), "manual")
		},
	}

	generateMigrationCmd := &cobra.Command{
		Use:     "generate-migration <Name>",
		Aliases: []string{"gm"},
		Short:   "Create a migration file chained on the current head",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateMigration(cmd.OutOrStdout(), "db/migrations", args[0])
		},
	}

	Db.AddCommand(upgradeCmd)
	Db.AddCommand(downgradeCmd)
	Db.AddCommand(currentCmd)
	Db.AddCommand(historyCmd)
	Db.AddCommand(headsCmd)
	Db.AddCommand(stampCmd)
	Db.AddCommand(checkCmd)
	Db.AddCommand(verifyCmd)
	Db.AddCommand(dumpCmd)
	Db.AddCommand(backupCmd)
	Db.AddCommand(generateMigrationCmd)
}

func argOr(args []string, fallback string) string {
	if len(args) == 0 {
		return fallback
	}
	return args[0]
}

func withConn(f func(conn *pgw.Conn) error) error {
	conn, err := db.Pool.AcquireBackground()
	if err != nil {
		return err
	}
	defer conn.Release()
	return f(conn)
}

// withLockedConn holds the migration lock while f runs.
func withLockedConn(f func(conn *pgw.Conn) error) error {
	return withConn(func(conn *pgw.Conn) (err error) {
		release, err := migrations.AcquireLock(conn, config.Cfg.DB.DBName)
		if err != nil {
			return err
		}
		defer func() {
			if releaseErr := release(); releaseErr != nil && err == nil {
				err = releaseErr
			}
		}()
		return f(conn)
	})
}

func ensurePgDump() error {
	if _, err := exec.LookPath("pg_dump"); err != nil {
		return oops.Wrap(err)
	}
	return nil
}

func runBackup(ctx context.Context, reason string) error {
	if err := ensurePgDump(); err != nil {
		return err
	}
	client, err := backup.NewS3Client(ctx, config.Cfg.Backup)
	if err != nil {
		return err
	}
	key, err := backup.Run(ctx, config.Cfg, client, reason)
	if err != nil {
		return err
	}
	log.Info().Str("key", key).Msg("Backed up database")
	return nil
}

func printSteps(w io.Writer, steps []migrations.Step) {
	for _, step := range steps {
		fmt.Fprintf(
			w, "%s %s -> %s, %s\n", step.Direction, displayRevision(step.From), displayRevision(step.To),
			step.Migration.Message(),
		)
	}
}

func displayRevision(revision string) string {
	if revision == "" {
		return "<base>"
	}
	return revision
}

type migrateFunc func(runner *migrations.Runner, conn *pgw.Conn, target string) ([]migrations.Step, error)
type planFunc func(runner *migrations.Runner, current string, target string) ([]migrations.Step, error)

func runMigrations(
	ctx context.Context, w io.Writer, target string, withBackup bool, dryRun bool, reason string,
	plan planFunc, migrate migrateFunc,
) error {
	runner, err := db.NewRunner()
	if err != nil {
		return err
	}

	return withLockedConn(func(conn *pgw.Conn) error {
		if dryRun {
			current, err := runner.Current(conn)
			if err != nil {
				return err
			}
			steps, err := plan(runner, current, target)
			if err != nil {
				return err
			}
			printSteps(w, steps)
			return nil
		}

		if withBackup {
			if err := runBackup(ctx, reason); err != nil {
				return err
			}
		}
		steps, err := migrate(runner, conn, target)
		printSteps(w, steps)
		if err != nil {
			return err
		}

		if len(steps) > 0 && config.Cfg.Env == config.EnvDevelopment {
			if err := ensurePgDump(); err != nil {
				log.Warn().Err(err).Msg("Skipping structure dump")
				return nil
			}
			return dumpStructure(config.Cfg.Migrations.StructureFile)
		}
		return nil
	})
}

func upgrade(ctx context.Context, w io.Writer, target string, withBackup bool, dryRun bool) error {
	return runMigrations(
		ctx, w, target, withBackup, dryRun, "upgrade",
		(*migrations.Runner).PlanUpgrade,
		func(runner *migrations.Runner, conn *pgw.Conn, target string) ([]migrations.Step, error) {
			return runner.Upgrade(conn, target)
		},
	)
}

func downgrade(ctx context.Context, w io.Writer, target string, withBackup bool, dryRun bool) error {
	return runMigrations(
		ctx, w, target, withBackup, dryRun, "downgrade",
		(*migrations.Runner).PlanDowngrade,
		func(runner *migrations.Runner, conn *pgw.Conn, target string) ([]migrations.Step, error) {
			return runner.Downgrade(conn, target)
		},
	)
}

func stamp(w io.Writer, target string) error {
	runner, err := db.NewRunner()
	if err != nil {
		return err
	}
	return withLockedConn(func(conn *pgw.Conn) error {
		revision, err := runner.Stamp(conn, target)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, displayRevision(revision))
		return nil
	})
}

type currentOutput struct {
	Revision *string `json:"revision"`
	IsHead   bool    `json:"is_head"`
}

func current(w io.Writer, asJson bool) error {
	runner, err := db.NewRunner()
	if err != nil {
		return err
	}
	return withConn(func(conn *pgw.Conn) error {
		revision, err := runner.Current(conn)
		if err != nil {
			return err
		}
		return writeCurrent(w, runner.Graph, revision, asJson)
	})
}

func writeCurrent(w io.Writer, graph *migrations.Graph, revision string, asJson bool) error {
	isHead := revision == graph.Head()
	if asJson {
		var maybeRevision *string
		if revision != "" {
			maybeRevision = &revision
		}
		return json.NewEncoder(w).Encode(currentOutput{
			Revision: maybeRevision,
			IsHead:   isHead,
		})
	}

	if revision == "" {
		fmt.Fprintln(w, displayRevision(revision))
	} else if isHead {
		fmt.Fprintf(w, "%s (head)\n", revision)
	} else {
		fmt.Fprintln(w, revision)
	}
	return nil
}

type historyEntry struct {
	Revision     string  `json:"revision"`
	DownRevision *string `json:"down_revision"`
	Message      string  `json:"message"`
	IsApplied    bool    `json:"is_applied"`
	IsCurrent    bool    `json:"is_current"`
	IsHead       bool    `json:"is_head"`
}

func history(w io.Writer, asJson bool) error {
	runner, err := db.NewRunner()
	if err != nil {
		return err
	}
	return withConn(func(conn *pgw.Conn) error {
		revision, err := runner.Current(conn)
		if err != nil {
			return err
		}
		return writeHistory(w, runner.Graph, revision, asJson)
	})
}

func historyEntries(graph *migrations.Graph, current string) []historyEntry {
	var entries []historyEntry
	for _, migration := range graph.History() {
		var maybeDownRevision *string
		if downRevision := migration.DownRevision(); downRevision != "" {
			maybeDownRevision = &downRevision
		}
		entries = append(entries, historyEntry{
			Revision:     migration.Revision(),
			DownRevision: maybeDownRevision,
			Message:      migration.Message(),
			IsApplied:    graph.IsApplied(migration.Revision(), current),
			IsCurrent:    migration.Revision() == current,
			IsHead:       migration.Revision() == graph.Head(),
		})
	}
	return entries
}

// writeHistory prints newest first, like alembic.
func writeHistory(w io.Writer, graph *migrations.Graph, current string, asJson bool) error {
	entries := historyEntries(graph, current)
	if asJson {
		return json.NewEncoder(w).Encode(entries)
	}

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		downRevision := ""
		if entry.DownRevision != nil {
			downRevision = *entry.DownRevision
		}
		var tags []string
		if entry.IsHead {
			tags = append(tags, "head")
		}
		if entry.IsCurrent {
			tags = append(tags, "current")
		}
		suffix := ""
		if len(tags) > 0 {
			suffix = fmt.Sprintf(" (%s)", strings.Join(tags, ", "))
		}
		fmt.Fprintf(
			w, "%s -> %s%s, %s\n", displayRevision(downRevision), entry.Revision, suffix, entry.Message,
		)
	}
	return nil
}

func verify(w io.Writer) error {
	runner, err := db.NewRunner()
	if err != nil {
		return err
	}
	return withConn(func(conn *pgw.Conn) error {
		revision, err := runner.Current(conn)
		if err != nil {
			return err
		}
		mismatches, err := schema.Verify(conn, runner.Graph, revision)
		if err != nil {
			return err
		}
		for _, mismatch := range mismatches {
			fmt.Fprintln(w, mismatch.String())
		}
		if len(mismatches) > 0 {
			return oops.Newf("Schema has %d mismatches at %s", len(mismatches), displayRevision(revision))
		}
		fmt.Fprintf(w, "Schema matches %s\n", displayRevision(revision))
		return nil
	})
}

func dumpStructure(filename string) error {
	pgDump, err := exec.LookPath("pg_dump")
	if err != nil {
		return oops.Wrap(err)
	}
	pgDumpCmd := exec.Command(
		pgDump, "--schema-only", "--no-privileges", "--no-owner", "--file", filename,
		"--dbname", config.Cfg.DB.DSN(),
	)
	pgDumpCmd.Stdout = os.Stdout
	pgDumpCmd.Stderr = os.Stderr
	if err := pgDumpCmd.Run(); err != nil {
		return oops.Wrap(err)
	}

	runner, err := db.NewRunner()
	if err != nil {
		return err
	}
	var revision string
	err = withConn(func(conn *pgw.Conn) error {
		var err error
		revision, err = runner.Current(conn)
		return err
	})
	if err != nil {
		return err
	}

	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return oops.Wrap(err)
	}
	if err := writeRevisionInsert(file, revision); err != nil {
		_ = file.Close()
		return err
	}
	return oops.Wrap(file.Close())
}

func writeRevisionInsert(w io.Writer, revision string) error {
	if revision == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "\nINSERT INTO alembic_version (version_num) VALUES ('%s');\n", revision)
	return oops.Wrap(err)
}

// newRevisionId follows alembic: the last 12 hex digits of a random uuid.
func newRevisionId() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return hex[len(hex)-12:]
}

const migrationTemplate = `package migrations

type {{.StructName}} struct{}

func init() {
	registerMigration(&{{.StructName}}{})
}

func (m *{{.StructName}}) Revision() string {
	return "{{.Revision}}"
}

func (m *{{.StructName}}) DownRevision() string {
	return "{{.DownRevision}}"
}

func (m *{{.StructName}}) Message() string {
	return "{{.Message}}"
}

func (m *{{.StructName}}) Up(tx *Tx) error {
	panic("Not implemented")
}

func (m *{{.StructName}}) Down(tx *Tx) error {
	panic("Not implemented")
}
`

type migrationParams struct {
	StructName   string
	Revision     string
	DownRevision string
	Message      string
}

func renderMigration(params migrationParams) ([]byte, error) {
	if !token.IsIdentifier(params.StructName) {
		return nil, oops.Newf("migration name is not a valid identifier: %s", params.StructName)
	}
	if !token.IsExported(params.StructName) {
		return nil, oops.Newf("migration name is not an exported identifier: %s", params.StructName)
	}

	tmpl := template.Must(template.New("migration").Parse(migrationTemplate))
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return nil, oops.Wrap(err)
	}
	source, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, oops.Wrap(err)
	}
	return source, nil
}

// migrationMessage turns InitComments into "init comments".
func migrationMessage(structName string) string {
	var words []string
	start := 0
	for i := 1; i < len(structName); i++ {
		if structName[i] >= 'A' && structName[i] <= 'Z' {
			words = append(words, structName[start:i])
			start = i
		}
	}
	words = append(words, structName[start:])
	return strings.ToLower(strings.Join(words, " "))
}

func generateMigration(w io.Writer, dir string, name string) error {
	graph, err := migrations.NewGraph(migrations.All)
	if err != nil {
		return err
	}
	params := migrationParams{
		StructName:   name,
		Revision:     newRevisionId(),
		DownRevision: graph.Head(),
		Message:      migrationMessage(name),
	}
	source, err := renderMigration(params)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("%s/%s_%s.go", dir, params.Revision, name)
	if err := os.WriteFile(filename, source, 0666); err != nil {
		return oops.Wrap(err)
	}
	fmt.Fprintln(w, "Created", filename)
	return nil
}
