package rerankd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rerankd/rerankd"
	"github.com/rerankd/rerankd/pkg/config"
	"github.com/rerankd/rerankd/pkg/device"
	"github.com/rerankd/rerankd/pkg/logger"
)

var rankCmd = &cobra.Command{
	Use:   "rank <question> [document ...]",
	Short: "Rank documents against a question once and exit",
	Long: `Rank documents against a question without starting the server.

Documents come from the arguments after the question, or from stdin (one
per line) when none are given:

  rerankd rank "What is a panda?" "Pandas eat bamboo." "Go is a language."
  cat documents.txt | rerankd rank "What is a panda?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().Int("top-k", 0, "Number of top documents to return (default all)")
	rankCmd.Flags().String("provider", "", "Scoring backend (onnx, jina, llm, mock)")
	rankCmd.Flags().String("model", "", "Model identifier")
	rankCmd.Flags().String("cache-dir", "", "Local directory for downloaded weights")
	rankCmd.Flags().Int("device", -1, "Accelerator device index override")
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)

	question := args[0]
	documents := args[1:]
	if len(documents) == 0 {
		documents, err = readDocuments(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read documents from stdin: %w", err)
		}
	}
	if len(documents) == 0 {
		return fmt.Errorf("no documents provided")
	}

	topK, _ := cmd.Flags().GetInt("top-k")
	if topK < 1 || topK > len(documents) {
		topK = len(documents)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	rt := device.NewORTRuntime(cfg.Model.LibraryPath)
	svc := rerankd.New(cfg, rt, nil, log)
	defer svc.Unload()

	ranked, elapsed, err := svc.Rank(cmd.Context(), question, documents, topK)
	if err != nil {
		return err
	}

	for i, doc := range ranked {
		fmt.Printf("%d. [%.4f] %s\n", i+1, doc.Score, doc.Document)
	}
	fmt.Printf("\nranked %d documents in %.3fs\n", len(documents), elapsed.Seconds())
	return nil
}

func readDocuments(f *os.File) ([]string, error) {
	var documents []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			documents = append(documents, line)
		}
	}
	return documents, scanner.Err()
}
