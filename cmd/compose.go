package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/codec"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/composition"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/config"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/snapshot"
)

func newComposeCmd(opts *rootOptions) *cobra.Command {
	wf := &workfile{}

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Edit a combo composition file",
		Long: `Edit a combo composition document (the same JSON the web export produces).

Steps and entries are numbered from 1. The selected step is remembered between
commands in a sidecar file next to the document.`,
		Example: `  combo compose new
  combo compose add-step
  combo compose select 1
  combo compose add 89631139
  combo compose note 1 "Normal summon"
  combo compose show`,
	}
	cmd.PersistentFlags().StringVarP(&wf.path, "file", "f", defaultComposeFile, "Composition document to edit")

	cmd.AddCommand(newComposeNewCmd(wf))
	cmd.AddCommand(newComposeOpCmd(wf, "add-step", "Append an empty step", 0, func(args []string) ([]composition.Op, error) {
		return []composition.Op{{Kind: "add_step"}}, nil
	}))
	cmd.AddCommand(newComposeSelectCmd(wf))
	cmd.AddCommand(newComposeAddCmd(wf, opts))
	cmd.AddCommand(newComposeOpCmd(wf, "note STEP TEXT", "Set a step's note", 2, func(args []string) ([]composition.Op, error) {
		step, err := parseIndex("step", args[0])
		if err != nil {
			return nil, err
		}
		return []composition.Op{{Kind: "set_note", Step: composition.Index(step), Note: args[1]}}, nil
	}))
	cmd.AddCommand(newComposeOpCmd(wf, "rm STEP ENTRY", "Remove an entry from a step", 2, func(args []string) ([]composition.Op, error) {
		step, entry, err := parseStepEntry(args)
		if err != nil {
			return nil, err
		}
		return []composition.Op{{Kind: "remove_entry", Step: composition.Index(step), Entry: composition.Index(entry)}}, nil
	}))
	cmd.AddCommand(newComposeOpCmd(wf, "move STEP ENTRY up|down", "Move an entry within its step", 3, func(args []string) ([]composition.Op, error) {
		step, entry, err := parseStepEntry(args)
		if err != nil {
			return nil, err
		}
		return []composition.Op{{Kind: "move_entry", Step: composition.Index(step), Entry: composition.Index(entry), Dir: args[2]}}, nil
	}))
	cmd.AddCommand(newComposeOpCmd(wf, "move-step STEP up|down", "Move a step", 2, func(args []string) ([]composition.Op, error) {
		step, err := parseIndex("step", args[0])
		if err != nil {
			return nil, err
		}
		return []composition.Op{{Kind: "move_step", Step: composition.Index(step), Dir: args[1]}}, nil
	}))
	cmd.AddCommand(newComposeOpCmd(wf, "dup STEP", "Duplicate a step after itself", 1, func(args []string) ([]composition.Op, error) {
		step, err := parseIndex("step", args[0])
		if err != nil {
			return nil, err
		}
		return []composition.Op{{Kind: "duplicate_step", Step: composition.Index(step)}}, nil
	}))
	cmd.AddCommand(newComposeOpCmd(wf, "delete-step STEP", "Delete a step", 1, func(args []string) ([]composition.Op, error) {
		step, err := parseIndex("step", args[0])
		if err != nil {
			return nil, err
		}
		return []composition.Op{{Kind: "delete_step", Step: composition.Index(step)}}, nil
	}))
	cmd.AddCommand(newComposeShowCmd(wf))

	return cmd
}

// newComposeOpCmd builds a subcommand that turns its arguments into editor
// operations and applies them to the document.
func newComposeOpCmd(wf *workfile, use, short string, nargs int, build func(args []string) ([]composition.Op, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := build(args)
			if err != nil {
				return err
			}
			editor, err := wf.apply(ops...)
			if err != nil {
				return err
			}
			return codec.WriteSummary(cmd.OutOrStdout(), editor.Composition())
		},
	}
}

func newComposeNewCmd(wf *workfile) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start an empty composition document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(wf.path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", wf.path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := wf.save(composition.NewEditor()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", wf.path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing document")
	return cmd
}

func newComposeSelectCmd(wf *workfile) *cobra.Command {
	var clearSel bool
	cmd := &cobra.Command{
		Use:   "select STEP",
		Short: "Choose the step that new entries go to",
		Args: func(cmd *cobra.Command, args []string) error {
			if clearSel {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			op := composition.Op{Kind: "clear_selection"}
			if !clearSel {
				step, err := parseIndex("step", args[0])
				if err != nil {
					return err
				}
				op = composition.Op{Kind: "select", Step: composition.Index(step)}
			}
			editor, err := wf.apply(op)
			if err != nil {
				return err
			}
			if i, ok := editor.Selected(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Selected step %d\n", i+1)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "No step selected")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearSel, "clear", false, "Clear the selection instead")
	return cmd
}

func newComposeAddCmd(wf *workfile, opts *rootOptions) *cobra.Command {
	var (
		step         int
		snapshotPath string
	)
	cmd := &cobra.Command{
		Use:   "add CARD_ID",
		Short: "Append a card to the selected step",
		Long: `Append a card to the selected step. The card is looked up in the card store,
or in a snapshot file with --snapshot. With --step the step is selected first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid card id %q", args[0])
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			card, err := lookupCard(cmd.Context(), cfg, snapshotPath, id)
			if err != nil {
				return err
			}

			var ops []composition.Op
			if step > 0 {
				ops = append(ops, composition.Op{Kind: "select", Step: composition.Index(step - 1)})
			}
			ops = append(ops, composition.Op{Kind: "add_entry", Card: &card})

			editor, err := wf.apply(ops...)
			if errors.Is(err, composition.ErrNoTargetStep) {
				return fmt.Errorf("%w: run 'compose select STEP' or pass --step", err)
			}
			if err != nil {
				return err
			}
			return codec.WriteSummary(cmd.OutOrStdout(), editor.Composition())
		},
	}
	cmd.Flags().IntVar(&step, "step", 0, "Select this step before adding")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Look the card up in a parquet or jsonl snapshot")
	return cmd
}

func newComposeShowCmd(wf *workfile) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a YAML summary of the composition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			editor, err := wf.open()
			if err != nil {
				return err
			}
			if out != "" {
				if err := codec.SaveSummary(out, editor.Composition()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Summary written to %s\n", out)
				return nil
			}
			if i, ok := editor.Selected(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "# selected step: %d\n", i+1)
			}
			return codec.WriteSummary(cmd.OutOrStdout(), editor.Composition())
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write the summary to a file")
	return cmd
}

func lookupCard(ctx context.Context, cfg config.Config, snapshotPath string, id int64) (models.Card, error) {
	if snapshotPath != "" {
		cards, err := snapshot.NewLoader(snapshotPath).Load()
		if err != nil {
			return models.Card{}, err
		}
		for _, c := range cards {
			if c.ID == id {
				return c, nil
			}
		}
		return models.Card{}, fmt.Errorf("card %d is not in %s", id, snapshotPath)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return models.Card{}, err
	}
	defer store.Close()

	card, ok, err := store.GetCard(ctx, id)
	if err != nil {
		return models.Card{}, err
	}
	if !ok {
		return models.Card{}, fmt.Errorf("card %d not found (run 'combo catalog sync' first)", id)
	}
	return card, nil
}

// parseIndex converts a 1-based argument to a 0-based index.
func parseIndex(what, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q: expected a number from 1", what, arg)
	}
	return n - 1, nil
}

func parseStepEntry(args []string) (int, int, error) {
	step, err := parseIndex("step", args[0])
	if err != nil {
		return 0, 0, err
	}
	entry, err := parseIndex("entry", args[1])
	if err != nil {
		return 0, 0, err
	}
	return step, entry, nil
}
