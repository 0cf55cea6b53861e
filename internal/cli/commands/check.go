package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/modelstore"
	"github.com/leapstack-labs/pushset/pkg/pushschema"
)

// ErrIncompatibleModel is returned by check --strict when a model has unsupported objects.
var ErrIncompatibleModel = errors.New("model is not compatible with push datasets")

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	var (
		modelPath string
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "check [model...]",
		Short: "Check models for push dataset compatibility",
		Long: `Check one or more .bim models and list the tables, measures and
relationships a push dataset cannot hold.

Measures are unsupported when they use USERELATIONSHIP or reference another
unsupported measure. Relationships are unsupported when inactive, one-to-one,
many-to-many, or attached to an unsupported table. A table named Date is
reserved.

Models are read from local paths or s3://bucket/key URIs. A missing model is
reported and skipped.`,
		Example: `  # Check a model
  pushset check model.bim

  # Check several models, failing when any is incompatible
  pushset check --strict sales.bim finance.bim

  # Machine readable result
  pushset check -m s3://models/sales.bim --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if modelPath != "" {
				paths = append([]string{modelPath}, paths...)
			}
			if len(paths) == 0 {
				return errors.New("no model given\nHint: pass a .bim path or use -m")
			}
			return runCheck(cmd, paths, strict)
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Path or s3:// URI of the .bim model")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a model is not compatible")

	return cmd
}

type checkedModel struct {
	path    string
	result  pushschema.CheckResult
	missing bool
}

func runCheck(cmd *cobra.Command, paths []string, strict bool) error {
	cmdCtx := NewCommandContext(cmd)
	store := newModelStore(cmdCtx.Cfg)

	checked := make([]checkedModel, len(paths))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, path := range paths {
		g.Go(func() error {
			checked[i].path = path
			db, err := store.Load(ctx, path)
			if errors.Is(err, modelstore.ErrNotFound) {
				checked[i].missing = true
				return nil
			}
			if err != nil {
				return err
			}
			checked[i].result = pushschema.Check(db.Model)
			cmdCtx.Logger.Debug("checked model", "path", path, "compatible", checked[i].result.Compatible())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	compatible := true
	for i := range checked {
		if !checked[i].missing && !checked[i].result.Compatible() {
			compatible = false
		}
	}

	r := cmdCtx.Renderer
	var err error
	switch r.EffectiveMode() {
	case output.ModeJSON:
		err = checkJSON(r, checked, compatible)
	case output.ModeMarkdown:
		checkMarkdown(r, checked)
	default:
		checkText(r, checked)
	}
	if err != nil {
		return err
	}

	if strict && !compatible {
		return ErrIncompatibleModel
	}
	return nil
}

func checkText(r *output.Renderer, checked []checkedModel) {
	styles := r.Styles()

	for _, c := range checked {
		if c.missing {
			r.Error(fmt.Sprintf("%s: file not found, skipped", c.path))
			continue
		}

		r.Println(styles.Header2.Render("Check: ") + styles.Path.Render(c.path))
		if c.result.Compatible() {
			r.Success("compatible with push datasets")
			r.Println("")
			continue
		}

		if len(c.result.Tables) > 0 {
			r.Println(styles.Bold.Render("Unsupported tables"))
			for _, t := range c.result.Tables {
				r.Printf("  %s  %s\n", t.Name, styles.Muted.Render(string(t.Reason)))
			}
		}
		if len(c.result.Measures) > 0 {
			r.Println(styles.Bold.Render("Unsupported measures"))
			r.Table([]string{"Table", "Measure", "Reason"}, measureRows(c.result.Measures))
		}
		if len(c.result.Relationships) > 0 {
			r.Println(styles.Bold.Render("Unsupported relationships"))
			for _, rel := range c.result.Relationships {
				r.Printf("  %s  %s\n", rel.String(), styles.Muted.Render(string(rel.Reason)))
			}
		}
		r.Warning(fmt.Sprintf("%d unsupported objects", unsupportedCount(c.result)))
		r.Println("")
	}
}

func checkMarkdown(r *output.Renderer, checked []checkedModel) {
	for _, c := range checked {
		if c.missing {
			r.Error(fmt.Sprintf("%s: file not found, skipped", c.path))
			continue
		}

		r.Println(output.FormatHeader(1, "Check: "+c.path))
		r.Println("")
		r.Println(output.FormatKeyValue("Compatible", fmt.Sprintf("%t", c.result.Compatible())))
		r.Println("")

		if len(c.result.Tables) > 0 {
			r.Println(output.FormatHeader(2, "Unsupported tables"))
			for _, t := range c.result.Tables {
				r.Printf("- %s: %s\n", t.Name, t.Reason)
			}
			r.Println("")
		}
		if len(c.result.Measures) > 0 {
			r.Println(output.FormatHeader(2, "Unsupported measures"))
			r.Table([]string{"Table", "Measure", "Reason"}, measureRows(c.result.Measures))
			r.Println("")
		}
		if len(c.result.Relationships) > 0 {
			r.Println(output.FormatHeader(2, "Unsupported relationships"))
			for _, rel := range c.result.Relationships {
				r.Printf("- `%s`: %s\n", rel.String(), rel.Reason)
			}
			r.Println("")
		}
	}
}

func checkJSON(r *output.Renderer, checked []checkedModel, compatible bool) error {
	out := output.CheckOutput{
		Files:      make([]output.CheckFileResult, 0, len(checked)),
		Compatible: compatible,
	}
	for _, c := range checked {
		if c.missing {
			out.Files = append(out.Files, output.CheckFileResult{Path: c.path, Error: "file not found"})
			continue
		}
		out.Files = append(out.Files, output.CheckFileResult{
			Path:          c.path,
			Compatible:    c.result.Compatible(),
			Tables:        c.result.Tables,
			Measures:      c.result.Measures,
			Relationships: c.result.Relationships,
		})
	}
	return r.JSON(out)
}

func measureRows(measures []pushschema.UnsupportedMeasure) [][]string {
	rows := make([][]string, 0, len(measures))
	for _, m := range measures {
		reason := string(m.Reason)
		if m.Via != "" {
			reason += " (" + m.Via + ")"
		}
		rows = append(rows, []string{m.Table, m.Name, reason})
	}
	return rows
}

func unsupportedCount(r pushschema.CheckResult) int {
	return len(r.Tables) + len(r.Measures) + len(r.Relationships)
}
