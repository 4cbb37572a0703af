package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinical-assessment-engine/internal/domain"
	"github.com/clinical-assessment-engine/internal/report"
	"github.com/clinical-assessment-engine/internal/service"
)

func (a *app) newEvaluateCommand() *cobra.Command {
	var (
		responsesFile string
		format        string
		subject       string
		output        string
	)
	cmd := &cobra.Command{
		Use:   "evaluate <assessment-id>",
		Short: "Score a response set and print the report",
		Long: `Evaluate scores the answers in a JSON file against one assessment.

The file holds an object of answers keyed by item id, optionally wrapped in
{"responses": {...}}. Use "-" to read it from stdin.

  catalogctl evaluate mini-cog --responses answers.json --format csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			responses, err := readResponses(cmd.InOrStdin(), responsesFile)
			if err != nil {
				return err
			}
			registry, _, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}

			svc := service.NewAssessmentService(registry, nil, nil, 0, a.logger)
			out, err := svc.Export(cmd.Context(), args[0], responses, parsed,
				report.Options{Subject: subject, Time: time.Now()})
			if err != nil {
				return describeError(err)
			}

			var w io.Writer = a.out
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				w = file
			}
			_, err = w.Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&responsesFile, "responses", "r", "", "JSON file of answers keyed by item id (- for stdin)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text|csv|json)")
	cmd.Flags().StringVar(&subject, "subject", "", "subject label printed on the report")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	_ = cmd.MarkFlagRequired("responses")
	return cmd
}

func readResponses(stdin io.Reader, path string) (*domain.ResponseSet, error) {
	var (
		content []byte
		err     error
	)
	if path == "-" {
		content, err = io.ReadAll(stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read responses: %w", err)
	}

	var wrapped struct {
		Responses *domain.ResponseSet `json:"responses"`
	}
	if err := json.Unmarshal(content, &wrapped); err == nil && wrapped.Responses != nil {
		return wrapped.Responses, nil
	}
	responses := domain.NewResponseSet()
	if err := json.Unmarshal(content, responses); err != nil {
		return nil, fmt.Errorf("failed to parse responses: %w", err)
	}
	return responses, nil
}

// describeError prefixes input and lookup errors with their error code.
func describeError(err error) error {
	if domain.IsInputError(err) || domain.ErrorCode(err) == domain.CodeNotFound {
		return fmt.Errorf("%s: %w", domain.ErrorCode(err), err)
	}
	return err
}
