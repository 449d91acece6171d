package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"pi360-service/internal/adapters/export"
	"pi360-service/internal/app"
	"pi360-service/internal/config"
	"pi360-service/internal/domain"
	"pi360-service/internal/services"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	configPath string
	dbPath     string
	seedPath   string
	verbose    bool

	logger *zap.Logger
}

type rankOptions struct {
	address  string
	lat, lng float64
	radius   float64
	max      int
	selected string
	xlsxPath string
}

func main() {
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(envErr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// envErr is the result of loading .env, reported once the logger exists.
func newRootCmd(envErr error) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "locator",
		Short: "Rank PI360 service locations by distance",
		Long: `locator ranks service-location facilities by great-circle distance
from a reference address or point, using the PHP API when PI360_API_BASE_URL
is set and the local facility snapshot otherwise.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zcfg := zap.NewProductionConfig()
			zcfg.OutputPaths = []string{"stderr"}
			if opts.verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			} else {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			}
			logger, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.logger = logger
			if envErr != nil {
				logger.Info("no .env file found (using environment variables)")
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.Get("CONFIG_PATH", "config.yaml"), "YAML config file")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite snapshot database (overrides DB_PATH)")
	root.PersistentFlags().StringVar(&opts.seedPath, "seed", "", "facility seed JSON (overrides SEED_PATH)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRankCmd(opts))
	return root
}

func newRankCmd(opts *options) *cobra.Command {
	ro := &rankOptions{}

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print facilities ranked by distance from a reference point",
		Example: `  locator rank --address "1901 W Madison St, Phoenix, AZ" --radius 10
  locator rank --lat 39.9 --lng -98.6 --max 5 --xlsx nearest.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
			if latSet != lngSet {
				return fmt.Errorf("--lat and --lng must be given together")
			}
			if cmd.Flags().Changed("max") && ro.max < 0 {
				return fmt.Errorf("--max must be >= 0, got %d", ro.max)
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.dbPath != "" {
				cfg.Storage.DBPath = opts.dbPath
			}
			if opts.seedPath != "" {
				cfg.Storage.SeedPath = opts.seedPath
			}

			radius := cfg.Locator.RadiusMiles
			if cmd.Flags().Changed("radius") {
				radius = ro.radius
			}
			maxResults := cfg.Locator.MaxResults
			if cmd.Flags().Changed("max") {
				maxResults = ro.max
			}

			req := services.LocateRequest{
				Address:    ro.address,
				Policy:     domain.NewProximityPolicy(radius, maxResults),
				SelectedID: ro.selected,
			}
			if latSet {
				req.Point = &domain.GeoPoint{Latitude: ro.lat, Longitude: ro.lng}
			}

			return runRank(cmd.Context(), cfg, req, ro.xlsxPath, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.logger)
		},
	}

	cmd.Flags().StringVar(&ro.address, "address", "", "reference address to geocode")
	cmd.Flags().Float64Var(&ro.lat, "lat", 0, "reference latitude")
	cmd.Flags().Float64Var(&ro.lng, "lng", 0, "reference longitude")
	cmd.Flags().Float64Var(&ro.radius, "radius", 0, "search radius in miles (default from config)")
	cmd.Flags().IntVar(&ro.max, "max", 0, "maximum results, 0 for no limit (default from config)")
	cmd.Flags().StringVar(&ro.selected, "selected", "", "facility id to keep selected if still ranked")
	cmd.Flags().StringVar(&ro.xlsxPath, "xlsx", "", "also write the table to this .xlsx file")

	return cmd
}

func runRank(
	ctx context.Context,
	cfg *config.Config,
	req services.LocateRequest,
	xlsxPath string,
	out, errOut io.Writer,
	logger *zap.Logger,
) error {
	comps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	res, err := services.NewLocator(comps.Facilities, comps.Geocoder, logger).Locate(ctx, req)
	if err != nil {
		return err
	}

	rows := services.TableRows(res.Facilities)
	if err := printTable(out, res, rows); err != nil {
		return err
	}

	for _, is := range res.Issues {
		fmt.Fprintf(errOut, "warning: facility %s (%s): %s\n", is.FacilityID, is.Name, is.Reason)
	}

	if xlsxPath != "" {
		f, err := os.Create(xlsxPath)
		if err != nil {
			return fmt.Errorf("create %q: %w", xlsxPath, err)
		}
		if err := export.WriteXLSX(f, res.Reference, rows); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %q: %w", xlsxPath, err)
		}
	}

	return nil
}

func printTable(w io.Writer, res *services.LocateResult, rows []services.TableRow) error {
	if res.Reference != nil {
		fmt.Fprintf(w, "Reference: %s\n\n", res.Reference)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tNAME\tADDRESS\tDISTANCE")
	for _, r := range rows {
		marker := ""
		if r.ID == res.SelectedID {
			marker = " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s%s\t%s\t%s\n", r.Rank, r.ID, r.Name, marker, r.Address, r.DistanceLabel)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d location(s)\n", len(rows))
	return nil
}
