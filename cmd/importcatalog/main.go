package main

import (
	"fmt"
	"os"

	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/platform/config"
	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/platform/metadata"
	"github.com/SlpAus/book-summaries-backend/internal/submission"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "importcatalog <content-dir>",
	Short:         "把摘要内容目录导入 books 表",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("无法加载配置: %w", err)
		}
		if err := logger.Init(cfg.Server.Mode); err != nil {
			return err
		}
		database.InitDB(cfg.Database)
		return metadata.PrimeDB()
	},
	RunE: runImport,
}

var exportPendingCmd = &cobra.Command{
	Use:   "export-pending <out-dir>",
	Short: "把待审核的投稿导出为Markdown，供人工审核",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportPending,
}

func init() {
	rootCmd.AddCommand(exportPendingCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := catalog.MigrateDB(database.DB); err != nil {
		return err
	}
	res, err := catalog.ImportDir(database.DB, args[0])
	if err != nil {
		return err
	}
	for _, path := range res.Skipped {
		logger.Warnf("已跳过: %s", path)
	}
	logger.Infof("导入完成: %d 本书，跳过 %d 个文件。", res.Imported, len(res.Skipped))
	return nil
}

func runExportPending(cmd *cobra.Command, args []string) error {
	if err := submission.MigrateDB(database.DB); err != nil {
		return err
	}
	n, err := submission.NewService(database.DB).ExportPending(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	logger.Infof("已导出 %d 篇待审核投稿到 %s。", n, args[0])
	return nil
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
