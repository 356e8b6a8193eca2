package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/store"
)

// exportCmd dumps the stored annotation document for a page as JSON.
var exportCmd = &cobra.Command{
	Use:   "export <project-id> <page>",
	Short: "Export the annotation document of a page",
	Long: `Print the stored annotation document of a page as indented JSON.

Examples:
  # Export page 1
  annotctl export 6e2c9f1a 1 > page1.json`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	page, err := strconv.Atoi(args[1])
	if err != nil || page < 1 {
		return fmt.Errorf("page must be a positive integer, got %q", args[1])
	}

	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := st.PageAnnotations(cmd.Context(), projectID, page)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no annotations stored for project %s page %d", projectID, page)
		}
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
