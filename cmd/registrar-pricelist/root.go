package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namewiz/registrar-pricelist/internal/api"
	"github.com/namewiz/registrar-pricelist/internal/config"
	"github.com/namewiz/registrar-pricelist/internal/cron"
	"github.com/namewiz/registrar-pricelist/internal/migrate"
	"github.com/namewiz/registrar-pricelist/internal/pricelist"
)

func newRootCmd(ver string) *cobra.Command {
	root := &cobra.Command{
		Use:           "registrar-pricelist",
		Short:         "Fetch, normalize and unify registrar TLD price lists",
		Version:       ver,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	root.AddCommand(newServeCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newUnifyCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newMigrateCmd())

	return root
}

// registerAdapters wires the registrar adapters; an adapter with incomplete
// configuration (e.g. no API key) is skipped with a warning so the rest of
// the system still works.
func registerAdapters(cfg config.Config) {
	for key, err := range config.RegisterAdapters(cfg) {
		log.Printf("registrar %s disabled: %v", key, err)
	}
	if len(pricelist.List()) == 0 {
		log.Printf("warning: no registrar adapters are configured")
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			registerAdapters(cfg)

			mux := api.NewMux(cfg)
			addr := ":" + cfg.Port
			log.Printf("registrar-pricelist listening on %s", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
}

func newFetchCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "fetch [registrar...]",
		Short: "Generate pricelists and write them as JSON files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			registerAdapters(cfg)
			if outDir == "" {
				outDir = cfg.OutputDir
			}

			svc := pricelist.NewService(0)
			res := svc.GetAllLists(cmd.Context(), args)
			for key, err := range res.Errors {
				log.Printf("fetch %s failed: %v", key, err)
			}
			for key, pl := range res.Lists {
				if _, err := pricelist.WritePricelistFile(outDir, pl); err != nil {
					return fmt.Errorf("write %s: %w", key, err)
				}
				log.Printf("wrote %s (%d TLDs)", key, len(pl.Items))
			}
			if len(res.Errors) > 0 {
				return fmt.Errorf("%d of %d registrars failed", len(res.Errors), len(res.Errors)+len(res.Lists))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default from PRICELIST_OUTPUT_DIR)")
	return cmd
}

func newUnifyCmd() *cobra.Command {
	var outDir string
	var stdout bool
	cmd := &cobra.Command{
		Use:   "unify",
		Short: "Generate all pricelists and write the unified cheapest-price table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			registerAdapters(cfg)
			if outDir == "" {
				outDir = cfg.OutputDir
			}

			svc := pricelist.NewService(0)
			res := svc.GetAllLists(cmd.Context(), nil)
			for key, err := range res.Errors {
				log.Printf("fetch %s failed: %v", key, err)
			}
			if len(res.Lists) == 0 {
				return fmt.Errorf("no registrar could be fetched")
			}

			entries := pricelist.Unify(res.Lists, nil)
			if stdout {
				rows := pricelist.CheapestRows(res.Lists, pricelist.OpCreate, nil)
				fmt.Fprint(cmd.OutOrStdout(), pricelist.RenderCSV(rows, false))
				return nil
			}
			if _, err := pricelist.WriteUnifiedFiles(outDir, res.Lists, entries); err != nil {
				return err
			}
			log.Printf("wrote unified table (%d TLDs) to %s", len(entries), outDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default from PRICELIST_OUTPUT_DIR)")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the create-price CSV to stdout instead of writing files")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the scheduled refresh worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			registerAdapters(cfg)
			return cron.Run(cmd.Context(), cfg.DBDriver, cfg.DBDSN, cfg.CacheTTL)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate {up|down|status}",
		Short:     "Run database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			switch strings.ToLower(args[0]) {
			case "up":
				return migrate.Up(cmd.Context(), cfg.DBDriver, cfg.DBDSN)
			case "down":
				return migrate.Down(cmd.Context(), cfg.DBDriver, cfg.DBDSN)
			case "status":
				return migrate.Status(cmd.Context(), cfg.DBDriver, cfg.DBDSN)
			default:
				return fmt.Errorf("unknown migrate action %q", args[0])
			}
		},
	}
	return cmd
}
