package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/application/subscription"
	appsync "github.com/subsync/backend/internal/application/sync"
	infrabilling "github.com/subsync/backend/internal/infrastructure/billing"
	"github.com/subsync/backend/internal/infrastructure/config"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/infrastructure/notify"
	"github.com/subsync/backend/internal/infrastructure/persistence"
	"github.com/subsync/backend/internal/jobs"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		resetAll     bool
		persistIDs   bool
		emailLog     bool
		emailAddress string
	)

	root := &cobra.Command{
		Use:          "jobs",
		Short:        "Run catalog and shipment sync jobs against the billing provider",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&resetAll, "reset-all", false, "push every product regardless of modification time")
	root.PersistentFlags().BoolVar(&persistIDs, "persist-ids", false, "keep stored provider ids during a reset run")
	root.PersistentFlags().BoolVar(&emailLog, "email-log", false, "mail the run report when the job finishes")
	root.PersistentFlags().StringVar(&emailAddress, "email-address", "", "override the report recipient")

	params := func() appsync.Params {
		p := appsync.Params{}
		if resetAll {
			p[appsync.ParamResetAll] = "true"
		}
		if persistIDs {
			p[appsync.ParamPersistIDs] = "true"
		}
		if emailLog {
			p[appsync.ParamEmailLog] = "true"
		}
		if emailAddress != "" {
			p[appsync.ParamEmailAddress] = emailAddress
		}
		return p
	}

	for _, job := range []string{jobs.JobCampaignMirror, jobs.JobProductSync, jobs.JobShipmentSync} {
		job := job
		root.AddCommand(&cobra.Command{
			Use:   job,
			Short: "Run the " + job + " job once and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				runner, log, cleanup, err := buildRunner()
				if err != nil {
					return err
				}
				defer cleanup()

				result := runner.Run(cmd.Context(), job, params())
				if result.Err != nil {
					return fmt.Errorf("%s: %w", job, result.Err)
				}
				log.Info("job finished", zap.String("job", job), zap.String("status", result.Status))
				return nil
			},
		})
	}

	return root
}

func buildRunner() (*jobs.Runner, *zap.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialize logger: %w", err)
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	cleanup := func() {
		_ = db.Close()
		_ = log.Sync()
	}

	gateway, err := infrabilling.NewGateway(&infrabilling.ProviderConfig{
		APIBaseURL:      cfg.Provider.APIBaseURL,
		Username:        cfg.Provider.Username,
		Password:        cfg.Provider.Password,
		CampaignID:      cfg.Provider.CampaignID,
		StraightSaleSKU: cfg.Provider.StraightSaleSKU,
		TimeoutSeconds:  cfg.Provider.TimeoutSeconds,
		MaxRetries:      cfg.Provider.MaxRetries,
		PageSize:        cfg.Provider.PageSize,
	}, log)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("initialize provider gateway: %w", err)
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Email.Enabled {
		notifier = notify.NewSMTPMailer(cfg.Email, log)
	}

	productRepo := persistence.NewGormProductRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	snapshotRepo := persistence.NewGormSnapshotRepository(db.DB)

	mirror := appsync.NewCampaignMirror(gateway, snapshotRepo, cfg.Provider.CampaignID, log)
	productSync := appsync.NewProductSync(gateway, productRepo, snapshotRepo, cfg.Provider.StraightSaleSKU, log)
	offerBinding := appsync.NewOfferBinding(gateway, log)
	reconciler := subscription.NewShipmentReconciler(gateway, orderRepo, log)

	return jobs.NewRunner(mirror, productSync, offerBinding, reconciler, notifier, log), log, cleanup, nil
}
