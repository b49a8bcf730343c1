package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docrank/docrank/internal/store"
)

// chunkRecord is the JSON shape accepted by `docrank index`. Key
// defaults to "<document_id>#<chunk_index>" when omitted.
type chunkRecord struct {
	Key string `json:"key,omitempty"`
	store.ChunkMeta
}

func newIndexCmd() *cobra.Command {
	var indexName string

	cmd := &cobra.Command{
		Use:   "index [chunks.json]",
		Short: "Embed and store chunks into a named index",
		Long: `Reads a JSON array of chunk records, embeds each chunk's content,
and upserts the results into the named index. Each record needs at
least document_id and chunk_index; page, section, summary, citation and
tag fields are optional enrichments.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexName == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read chunks file: %w", err)
			}
			var records []chunkRecord
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("parse chunks file: %w", err)
			}
			if len(records) == 0 {
				return fmt.Errorf("no chunks in %s", args[0])
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			embedder := newEmbedder(cfg)
			defer func() { _ = embedder.Close() }()

			chunks := make([]store.IndexedChunk, 0, len(records))
			for i, rec := range records {
				if err := rec.ChunkMeta.Validate(); err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				key := rec.Key
				if key == "" {
					key = fmt.Sprintf("%s#%d", rec.DocumentID, rec.ChunkIndex)
				}

				vector, err := embedder.Embed(cmd.Context(), rec.Content)
				if err != nil {
					return fmt.Errorf("embed record %d: %w", i, err)
				}
				chunks = append(chunks, store.IndexedChunk{
					Key:    key,
					Vector: vector,
					Meta:   rec.ChunkMeta,
				})
			}

			if err := st.Upsert(cmd.Context(), indexName, chunks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks into %q\n", len(chunks), indexName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&indexName, "name", "n", "", "Target index name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
