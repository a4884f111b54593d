package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/claridata/internal/pipeline"
	"github.com/KaramelBytes/claridata/internal/report"
	"github.com/KaramelBytes/claridata/internal/utils"
	"github.com/spf13/cobra"
)

var (
	profLoad   loadFlags
	profFormat string
	profOutput string
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Profile a dataset: column types, statistics and correlations",
	Example: `  claridata profile sales.csv
  claridata profile report.xlsx --sheet-name Data --format markdown
  claridata profile warehouse.db --table orders --output orders.profile.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := profLoad.options()
		if err != nil {
			return err
		}
		format := strings.ToLower(strings.TrimSpace(profFormat))
		if format != "json" && format != "markdown" && format != "md" {
			return fmt.Errorf("unsupported --format: %s (use json|markdown)", profFormat)
		}
		a, err := pipeline.Analyze(args[0], opt)
		if err != nil {
			return err
		}
		defer a.Release()
		logger.Debug("profiled dataset", "source", a.Profile.Source, "rows", a.Profile.RowCount, "columns", len(a.Profile.Columns))

		var out []byte
		if format == "json" {
			if out, err = utils.PrettyJSON(a.Profile); err != nil {
				return err
			}
		} else {
			out = []byte(report.Markdown(a.Profile))
		}
		if profOutput != "" {
			if err := utils.SafeWriteFile(profOutput, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote profile to %s\n", profOutput)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	addLoadFlags(profileCmd, &profLoad)
	profileCmd.Flags().StringVar(&profFormat, "format", "json", "output format: json|markdown")
	profileCmd.Flags().StringVarP(&profOutput, "output", "o", "", "write the profile to this path instead of stdout")
}

func addLoadFlags(c *cobra.Command, f *loadFlags) {
	c.Flags().StringVar(&f.Delimiter, "delimiter", "", "field delimiter for delimited text: ,|tab|;|pipe (default by extension)")
	c.Flags().StringVar(&f.SheetName, "sheet-name", "", "XLSX sheet name (overrides --sheet-index)")
	c.Flags().IntVar(&f.SheetIndex, "sheet-index", 0, "XLSX 1-based sheet index (default first sheet)")
	c.Flags().StringVar(&f.Table, "table", "", "SQLite table (default first user table)")
}
