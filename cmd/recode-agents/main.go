// Command recode-agents migrates legacy AGT-prefixed agent codes to the KH
// format, rewriting referrer back-references in the same transaction. It is a
// one-off data migration; run with --dry-run first to preview the changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/khholdings/agentpay-backend/internal/agents"
	"github.com/khholdings/agentpay-backend/pkg/config"
	"github.com/khholdings/agentpay-backend/pkg/db"
	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

const legacyPrefix = "AGT"

// errDryRunRollback aborts the transaction after a successful dry run pass.
var errDryRunRollback = errors.New("dry run rollback")

func main() {
	logg := logger.New(logger.Options{ServiceName: "recode-agents"})

	_ = godotenv.Load()

	dryRun := flag.Bool("dry-run", false, "preview changes without applying them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "recode-agents",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"dry_run": *dryRun,
	})
	logg.Info(ctx, "starting agent code recode")

	updated, err := recode(ctx, dbClient, logg, *dryRun)
	if err != nil {
		logg.Error(ctx, "agent code recode failed", err)
		os.Exit(1)
	}

	ctx = logg.WithField(ctx, "updated", updated)
	if *dryRun {
		logg.Info(ctx, "dry run complete, no changes applied")
		return
	}
	logg.Info(ctx, "agent code recode complete")
}

// recode rewrites every AGT code and its referrer back-references inside one
// transaction. Dry runs do the same work and roll back at the end, so the
// preview exercises the exact statements a real run would.
func recode(ctx context.Context, dbClient *db.Client, logg *logger.Logger, dryRun bool) (int, error) {
	updated := 0
	err := dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := agents.NewRepository(tx)
		legacy, err := repo.ListWithCodePrefix(ctx, legacyPrefix)
		if err != nil {
			return err
		}
		if len(legacy) == 0 {
			logg.Info(ctx, "no legacy codes found, nothing to do")
			return nil
		}

		for _, agent := range legacy {
			oldCode := *agent.AgentCode
			newCode := strings.Replace(oldCode, legacyPrefix, agents.CodePrefix, 1)

			logCtx := logg.WithFields(ctx, map[string]any{
				"agent_id": agent.ID.String(),
				"old_code": oldCode,
				"new_code": newCode,
			})
			logg.Info(logCtx, "recoding agent")

			if err := repo.UpdateCode(ctx, agent.ID, newCode); err != nil {
				return fmt.Errorf("update code for %s: %w", agent.ID, err)
			}
			if err := tx.WithContext(ctx).
				Model(&models.Agent{}).
				Where("referrer_code = ?", oldCode).
				Update("referrer_code", newCode).Error; err != nil {
				return fmt.Errorf("rewrite referrers of %s: %w", oldCode, err)
			}
			updated++
		}

		if dryRun {
			return errDryRunRollback
		}
		return nil
	})
	if dryRun && errors.Is(err, errDryRunRollback) {
		return updated, nil
	}
	return updated, err
}
