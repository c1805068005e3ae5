package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagRoot       string
	flagFolder     string
	flagOrg        string
	flagExportRoot string
	flagDryRun     bool
	flagPublish    bool
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sf-knowledge-uploader",
	Short: "Upload MindTouch HTML export articles to Salesforce Knowledge",
	Long: `sf-knowledge-uploader transforms articles from a MindTouch HTML export
into Salesforce Knowledge articles: it strips export boilerplate, uploads
referenced images and attachments as Salesforce Files, rewrites the
references to Salesforce URLs, and creates the Knowledge records.

Authentication reuses the sf CLI session (sf org login web).`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&flagRoot, "root", "", "articles root directory (overrides settings)")
	rootCmd.Flags().StringVar(&flagFolder, "folder", "", "process a single article folder")
	rootCmd.Flags().StringVar(&flagOrg, "org", "", "sf CLI target org alias")
	rootCmd.Flags().StringVar(&flagExportRoot, "export-root", "", "MindTouch export root (autodetected when omitted)")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "preview without calling Salesforce")
	rootCmd.Flags().BoolVar(&flagPublish, "publish", false, "publish articles after creation")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	if flagVerbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := ensureConfigExists(); err != nil {
		return err
	}
	settings, err := loadSettings(GetConfigPath("settings.yaml"))
	if err != nil {
		return err
	}

	if flagRoot != "" {
		settings.ArticlesRoot = flagRoot
	}
	if flagOrg != "" {
		settings.Salesforce.TargetOrg = flagOrg
	}
	if flagPublish {
		settings.PublishOnCreate = true
	}

	var folders []string
	if flagFolder != "" {
		folders = []string{flagFolder}
	} else {
		if settings.ArticlesRoot == "" {
			return &ConfigurationError{Path: GetConfigPath("settings.yaml"), Reason: "articles_root is not set (or pass --root)"}
		}
		folders, err = DiscoverArticles(settings.ArticlesRoot, settings.HTMLFilename)
		if err != nil {
			return err
		}
	}
	if len(folders) == 0 {
		log.Warn("No article folders found; nothing to do")
		return nil
	}

	exportRoot := flagExportRoot
	if exportRoot == "" {
		probe := settings.ArticlesRoot
		if probe == "" {
			probe = folders[0]
		}
		exportRoot = DetectExportRoot(probe)
	}
	if exportRoot == "" {
		return &ConfigurationError{
			Path:   settings.ArticlesRoot,
			Reason: "could not locate the export root (no 'relative/' folder above); pass --export-root",
		}
	}

	tree, err := BuildExportTree(exportRoot)
	if err != nil {
		return err
	}
	log.Infof("Export root: %s", tree.Root)

	client := NewSalesforceClient(settings.Salesforce)
	processor := NewArticleProcessor(settings, client, tree)
	processor.SetDryRun(flagDryRun)
	processor.SetPublish(settings.PublishOnCreate)

	results := processor.ProcessAll(folders)

	PrintSummary(results)
	reportDir := settings.ArticlesRoot
	if reportDir == "" {
		reportDir = "."
	}
	if _, err := SaveReport(reportDir, results); err != nil {
		log.Warnf("Could not save report: %v", err)
	}

	for _, r := range results {
		if r.Status == StatusError {
			os.Exit(1)
		}
	}
	return nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
