package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/etims-go/internal/model"
)

var (
	documentKind string
	outputFormat string
)

// documentKinds maps --kind values to the document they decode into
var documentKinds = map[string]struct {
	name   string
	newDoc func() model.Validator
}{
	"init":    {"device init", func() model.Validator { return &model.DeviceInit{} }},
	"sync":    {"data sync request", func() model.Validator { return &model.DataSyncRequest{} }},
	"branch":  {"branch info", func() model.Validator { return &model.BranchInfo{} }},
	"item":    {"item", func() model.Validator { return &model.ItemSave{} }},
	"import":  {"import item", func() model.Validator { return &model.ImportItem{} }},
	"sale":    {"sale invoice", func() model.Validator { return &model.SaleInvoice{} }},
	"reverse": {"reverse invoice", func() model.Validator { return &model.ReverseInvoice{} }},
	"stock":   {"stock item", func() model.Validator { return &model.StockItem{} }},
}

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate eTIMS documents without sending them",
	Long: `Validate one or more JSON documents the way the client does before
transmission.

Checks performed:
  - No fields outside the document schema
  - Required fields present
  - Enumerations (item type, tax type A-E, receipt label)
  - Line totals: totAmt equals qty x uprc rounded half-up to 2 places
  - Tax split: taxblAmt + taxAmt equals totAmt
  - Invoice total equals the sum of its lines
  - Reverse invoices reference orgInvcNo

Examples:
  etims validate invoice.json
  etims validate --kind stock adjustments/*.json --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&documentKind, "kind", "k", "sale", "Document kind ("+strings.Join(kindNames(), ", ")+")")
	validateCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format (json, table)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if _, ok := documentKinds[documentKind]; !ok {
		return fmt.Errorf("unknown document kind %q (want one of %s)", documentKind, strings.Join(kindNames(), ", "))
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	results := make([]*ValidationResult, 0, len(files))
	allValid := true
	for _, file := range files {
		result := validateFile(cmd, file)
		results = append(results, result)
		if !result.Valid {
			allValid = false
		}
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(out, "✓ %s: VALID\n", r.File)
				continue
			}
			fmt.Fprintf(out, "✗ %s: INVALID\n", r.File)
			for _, e := range r.Errors {
				fmt.Fprintf(out, "  - %s\n", e)
			}
		}
	}

	if !allValid {
		return fmt.Errorf("validation failed for some files")
	}
	return nil
}

func validateFile(cmd *cobra.Command, filePath string) *ValidationResult {
	result := &ValidationResult{File: filePath, Valid: true}

	kind := documentKinds[documentKind]
	doc := kind.newDoc()
	if err := decodeDocument(cmd, filePath, kind.name, doc); err != nil {
		result.fail(err)
		return result
	}

	if err := withDefaults(doc).Validate(); err != nil {
		result.fail(err)
	}
	return result
}

// withDefaults applies the same defaults the client fills in before sending
func withDefaults(doc model.Validator) model.Validator {
	switch d := doc.(type) {
	case *model.ItemSave:
		return d.WithDefaults()
	case *model.SaleInvoice:
		return model.SaleInvoice{Invoice: d.Invoice.WithDefaults()}
	case *model.ReverseInvoice:
		return model.ReverseInvoice{Invoice: d.Invoice.WithDefaults()}
	}
	return doc
}

// collectFiles expands glob patterns; "-" is passed through for stdin
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		if arg == "-" {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err != nil {
				return nil, fmt.Errorf("file not found: %s", arg)
			}
			matches = []string{arg}
		}
		files = append(files, matches...)
	}
	return files, nil
}

func kindNames() []string {
	names := make([]string, 0, len(documentKinds))
	for name := range documentKinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidationResult holds the result of validating a single file
type ValidationResult struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// fail records err, one entry per violation when err aggregates several
func (r *ValidationResult) fail(err error) {
	r.Valid = false
	var multi model.ValidationErrors
	if errors.As(err, &multi) {
		for _, e := range multi {
			r.Errors = append(r.Errors, e.Error())
		}
		return
	}
	r.Errors = append(r.Errors, err.Error())
}
