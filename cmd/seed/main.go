package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/resource"
)

var departments = []struct{ Name, Code string }{
	{"General Practice", "GP"},
	{"Cardiology", "CARD"},
	{"Dermatology", "DERM"},
	{"Pediatrics", "PED"},
	{"Neurology", "NEUR"},
	{"Pathology Lab", "LAB"},
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "seed",
		Short:        "Database schema and fixture tooling for the clinic scheduler",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(dataCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect loads config and opens a pool sized for a one-shot command.
func connect(ctx context.Context) (*pgxpool.Pool, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config load: %w", err)
	}
	log := logging.New(cfg.Env, "seed")

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 4)
	if err != nil {
		return nil, log, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, log, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, log, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("applied", n).Msg("migrations complete")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, db.Migrations()).Status(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %-30s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				state, at := "pending", ""
				if s.Applied {
					state = "applied"
					at = s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%-8d %-30s %-10s %s\n", s.Version, s.Name, state, at)
			}
			return nil
		},
	})

	return cmd
}

func dataCmd() *cobra.Command {
	var (
		clinicians  int
		technicians int
		patients    int
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Insert departments, clinicians, lab technicians and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, log, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			faker := gofakeit.New(uint64(seed))

			deptIDs, err := seedDepartments(ctx, pool)
			if err != nil {
				return fmt.Errorf("seed departments: %w", err)
			}
			log.Info().Int("count", len(deptIDs)).Msg("departments seeded")

			// The last department is the lab. Even-indexed technicians go there,
			// the rest join clinical departments.
			labDept := deptIDs[len(deptIDs)-1]
			clinical := deptIDs[:len(deptIDs)-1]

			if err := seedStaff(ctx, pool, faker, resource.RoleClinician, clinicians, func(i int) uuid.UUID {
				return clinical[i%len(clinical)]
			}); err != nil {
				return fmt.Errorf("seed clinicians: %w", err)
			}
			log.Info().Int("count", clinicians).Msg("clinicians seeded")

			if err := seedStaff(ctx, pool, faker, resource.RoleLabTechnician, technicians, func(i int) uuid.UUID {
				if i%2 == 0 {
					return labDept
				}
				return clinical[i%len(clinical)]
			}); err != nil {
				return fmt.Errorf("seed lab technicians: %w", err)
			}
			log.Info().Int("count", technicians).Msg("lab technicians seeded")

			if err := seedPatients(ctx, pool, faker, patients, log); err != nil {
				return fmt.Errorf("seed patients: %w", err)
			}

			log.Info().Str("default_lab_department_id", labDept.String()).Msg("seed complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&clinicians, "clinicians", 20, "number of clinicians")
	cmd.Flags().IntVar(&technicians, "technicians", 8, "number of lab technicians")
	cmd.Flags().IntVar(&patients, "patients", 1000, "number of patients")
	cmd.Flags().Int64Var(&seed, "seed", 0, "faker seed (0 = time based)")

	return cmd
}

// seedDepartments upserts the fixed department list and returns ids in list order.
func seedDepartments(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(departments))
	for _, d := range departments {
		var id uuid.UUID
		err := pool.QueryRow(ctx, `
			INSERT INTO departments (id, name, code)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, uuid.New(), d.Name, d.Code).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, role resource.Role, count int, dept func(i int) uuid.UUID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		name := faker.Name()
		if role == resource.RoleClinician {
			name = "Dr. " + name
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO staff (id, name, role, department_id, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
		`, uuid.New(), name, string(role), dept(i))
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, log zerolog.Logger) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), faker.Name(), faker.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}
