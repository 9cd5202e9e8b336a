package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmoraes/braseiro/config"
	"github.com/rmoraes/braseiro/internal/backup"
	"github.com/rmoraes/braseiro/internal/store"
	"github.com/rmoraes/braseiro/pkg/archive"
	"github.com/rmoraes/braseiro/pkg/cache"
	"github.com/rmoraes/braseiro/pkg/database"
)

// boot loads config and connects the archive disks.
func boot() error {
	if err := config.Load(); err != nil {
		return err
	}
	archive.Connect()
	return nil
}

// bootManager wires the storage manager the same way the server does.
func bootManager(cmd *cobra.Command) (*store.Manager, error) {
	if err := boot(); err != nil {
		return nil, err
	}
	return store.Boot(cmd.Context())
}

// flatBackend builds the flat store from config, for commands that need
// it directly.
func flatBackend() *store.FlatBackend {
	var kv store.KV
	switch config.FlatDriver() {
	case "memory":
		kv = store.NewMemoryKV()
	default:
		if cache.RDB == nil {
			cache.Connect() //nolint:errcheck
		}
		if cache.RDB != nil {
			kv = store.NewRedisKV(cache.RDB)
		} else {
			kv = store.NewMemoryKV()
		}
	}
	return store.NewFlatBackend(kv)
}

// braseiro migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move legacy flat-store data into the structured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := boot(); err != nil {
			return err
		}

		dialector, err := database.Dialector()
		if err != nil {
			return err
		}
		structured := store.NewStructuredBackend(dialector)
		if err := structured.WaitReady(cmd.Context()); err != nil {
			return err
		}
		defer structured.Close()

		report, err := store.Migrate(cmd.Context(), structured, flatBackend())
		if err != nil {
			return err
		}
		if report.AlreadyCompleted {
			fmt.Println("Migration already completed — nothing to do.")
			return nil
		}
		ok, failed := report.Orders.Counts()
		fmt.Printf("Migrated %d orders (%d skipped), %d cart items.\n", ok, failed, report.CartItems)
		return nil
	},
}

// braseiro backup:export
var backupExportCmd = &cobra.Command{
	Use:   "backup:export",
	Short: "Export the full dataset to the configured archive disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := bootManager(cmd)
		if err != nil {
			return err
		}
		defer manager.Close()

		engine := backup.NewEngine(manager)
		env, err := engine.Export(cmd.Context())
		if err != nil {
			return err
		}
		data, err := backup.Encode(env)
		if err != nil {
			return err
		}

		name := backup.Filename(config.Brand(), time.Now())
		path := config.BackupDir() + "/" + name
		if err := archive.Put(path, data); err != nil {
			return err
		}
		fmt.Printf("Backup written: %s (%d orders, %d products)\n", path, len(env.Orders), len(env.Products))
		return nil
	},
}

// braseiro backup:restore <file> --yes
var backupRestoreCmd = &cobra.Command{
	Use:   "backup:restore <file>",
	Short: "Replace the dataset with a backup file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		env, err := backup.Decode(data)
		if err != nil {
			return err
		}

		summary := backup.Preview(env)
		fmt.Printf("Backup of %s: %d orders, %.2f revenue, %d products, %d cart items.\n",
			summary.BackupDate.Format("2006-01-02 15:04"),
			summary.OrderCount, summary.TotalRevenue, summary.Products, summary.CartItems)

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			fmt.Println("Re-run with --yes to replace the current dataset.")
			return nil
		}

		manager, err := bootManager(cmd)
		if err != nil {
			return err
		}
		defer manager.Close()

		report, err := backup.NewEngine(manager).Restore(cmd.Context(), env)
		if report != nil {
			fmt.Printf("Restored: %d/%d orders, %d/%d products, %d/%d settings.\n",
				report.Orders.Imported, report.Orders.Total,
				report.Products.Imported, report.Products.Total,
				report.Settings.Imported, report.Settings.Total)
		}
		return err
	},
}

// braseiro backup:recover
var backupRecoverCmd = &cobra.Command{
	Use:   "backup:recover",
	Short: "Re-apply the emergency snapshot taken before the last restore",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := bootManager(cmd)
		if err != nil {
			return err
		}
		defer manager.Close()

		report, err := backup.NewEngine(manager).Recover(cmd.Context())
		if report != nil {
			fmt.Printf("Recovered: %d/%d orders, %d/%d products.\n",
				report.Orders.Imported, report.Orders.Total,
				report.Products.Imported, report.Products.Total)
		}
		return err
	},
}

// braseiro stats
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print order-history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := bootManager(cmd)
		if err != nil {
			return err
		}
		defer manager.Close()

		orders, err := manager.QueryOrders(cmd.Context(), store.OrderFilter{})
		if err != nil {
			return err
		}
		stats := backup.ComputeStats(orders)
		fmt.Printf("Orders:         %d\n", stats.TotalOrders)
		fmt.Printf("Total revenue:  %.2f\n", stats.TotalRevenue)
		fmt.Printf("Average ticket: %.2f\n", stats.AverageTicket)
		if stats.FirstOrderAt != nil {
			fmt.Printf("First order:    %s\n", stats.FirstOrderAt.Format("2006-01-02 15:04"))
		}
		if stats.LastOrderAt != nil {
			fmt.Printf("Last order:     %s\n", stats.LastOrderAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	backupRestoreCmd.Flags().Bool("yes", false, "confirm the destructive restore")
}
