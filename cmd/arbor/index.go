package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the local section index used by the sqlite retriever",
}

var indexImportCmd = &cobra.Command{
	Use:   "import <sections.yaml>...",
	Short: "Load numbered sections from YAML files into the index",
	Long: `Each file holds a list of sections:

  - num: "5.2"
    title: Snow load on the ground
    category: DIN 1993-1-3
    chunks:
      - data_type: Definition
        content: The characteristic value of snow load on the ground ...`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		db, err := cli.OpenDB(cfg.Retrieval.IndexPath)
		if err != nil {
			return err
		}
		defer db.Close()
		idx := sqlite.NewIndex(db)

		total := 0
		for _, path := range args {
			sections, err := readSections(path)
			if err != nil {
				return err
			}
			for _, s := range sections {
				if err := idx.Add(cmd.Context(), s); err != nil {
					return fmt.Errorf("%s: section %s: %w", path, s.Num, err)
				}
			}
			logger.Debug("imported sections", "file", path, "count", len(sections))
			total += len(sections)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sections into %s\n", total, cfg.Retrieval.IndexPath)
		return nil
	},
}

func readSections(path string) ([]sqlite.Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sections []sqlite.Section
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return sections, nil
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexImportCmd)
}
