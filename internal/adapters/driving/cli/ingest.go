package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quorum-labs/quorum/internal/core/domain"
)

var (
	ingestTitle string
	ingestType  string
	ingestTags  []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest a file into memory",
	Long: `Reads a file, stores it as a document and embeds its content for
semantic search. Use "-" to read from stdin.

The document is stored even if the embedding provider is unavailable;
it just will not be searchable until re-embedded.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestType, "type", string(domain.DocTypeNote), "document type (note, file, report, email, web, record)")
	ingestCmd.Flags().StringSliceVar(&ingestTags, "tags", nil, "comma-separated tags")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	path := args[0]
	var content, title string

	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		content = string(data)
		title = ingestTitle
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		content = string(data)
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if ingestTitle != "" {
			title = ingestTitle
		}
	}

	if strings.TrimSpace(content) == "" {
		return errors.New("nothing to ingest: content is empty")
	}

	docType := domain.DocumentType(ingestType)
	if !docType.Valid() {
		return fmt.Errorf("unknown document type %q", ingestType)
	}

	doc := &domain.Document{
		ID:      uuid.NewString(),
		Type:    docType,
		Title:   title,
		Content: content,
		Tags:    ingestTags,
	}

	embedded, err := ingestService.IngestDocument(context.Background(), doc)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if embedded {
		cmd.Printf("Ingested %s (%s)\n", doc.ID, doc.Type)
	} else {
		cmd.Printf("Ingested %s (%s) without embeddings; not yet searchable\n", doc.ID, doc.Type)
	}
	return nil
}
