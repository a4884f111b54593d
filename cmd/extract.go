package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/claridata/internal/insight"
	"github.com/KaramelBytes/claridata/internal/pipeline"
	"github.com/KaramelBytes/claridata/internal/report"
	"github.com/KaramelBytes/claridata/internal/utils"
	"github.com/spf13/cobra"
)

var (
	extDataset string
	extLoad    loadFlags
	extFormat  string
	extOutput  string
)

var extractCmd = &cobra.Command{
	Use:   "extract [reply-file|-]",
	Short: "Extract the insight document from a saved model reply",
	Long: `extract reads a model reply (a file, or stdin with "-" or no argument), strips code fences and
surrounding prose, and prints the normalized insight document. With --dataset the proposals are also
resolved against that dataset and the resulting charts are printed.`,
	Example: `  claridata extract reply.txt
  pbpaste | claridata extract --dataset sales.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := "-"
		if len(args) == 1 {
			src = args[0]
		}
		raw, err := utils.ReadInput(src, cmd.InOrStdin())
		if err != nil {
			return err
		}
		format := strings.ToLower(strings.TrimSpace(extFormat))
		if format != "terminal" && format != "json" {
			return fmt.Errorf("unsupported --format: %s (use terminal|json)", extFormat)
		}

		if extDataset == "" {
			doc, err := insight.Extract(raw)
			if err != nil {
				return reportExtractionFailure(cmd, err)
			}
			b, err := insight.Marshal(doc)
			if err != nil {
				return err
			}
			return emit(cmd, append(b, '\n'))
		}

		opt, err := extLoad.options()
		if err != nil {
			return err
		}
		d, err := pipeline.Replay(extDataset, opt, raw, logger)
		if err != nil {
			return reportExtractionFailure(cmd, err)
		}
		if format == "terminal" && extOutput == "" {
			return report.Terminal(cmd.OutOrStdout(), d)
		}
		b, err := utils.PrettyJSON(d)
		if err != nil {
			return err
		}
		return emit(cmd, b)
	},
}

func emit(cmd *cobra.Command, b []byte) error {
	if extOutput != "" {
		if err := utils.SafeWriteFile(extOutput, b); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", extOutput)
		return nil
	}
	_, err := cmd.OutOrStdout().Write(b)
	return err
}

// reportExtractionFailure shows the raw reply so the user can see what the
// model actually said.
func reportExtractionFailure(cmd *cobra.Command, err error) error {
	var xErr *insight.ExtractionError
	if errors.As(err, &xErr) {
		raw := xErr.Raw
		if strings.TrimSpace(raw) == "" {
			raw = "(empty)"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Raw text:\n%s\n", raw)
	}
	return err
}

func init() {
	rootCmd.AddCommand(extractCmd)
	addLoadFlags(extractCmd, &extLoad)
	extractCmd.Flags().StringVar(&extDataset, "dataset", "", "resolve proposals against this dataset and print charts")
	extractCmd.Flags().StringVar(&extFormat, "format", "json", "output with --dataset: terminal|json")
	extractCmd.Flags().StringVarP(&extOutput, "output", "o", "", "write the result to this path")
}
