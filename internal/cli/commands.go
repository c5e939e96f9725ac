package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petasbytes/budgetchat/internal/tokenizer"
	"github.com/petasbytes/budgetchat/memory"
)

func newHistoryCmd(app App, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the persisted conversation with token counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}
			counter, err := tokenizer.ForEncoding(cfg.Encoding)
			if err != nil {
				return err
			}
			conv, err := memory.NewStore(app.Fs, cfg.HistoryFile).Load()
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(conv) == 0 {
				printf(app.Out, "no history in %s\n", cfg.HistoryFile)
				return nil
			}

			total := 0
			for i, m := range conv {
				n := counter.Count(m.Content)
				total += n
				printf(app.Out, "%3d  %-9s %5d  %s\n", i, m.Role, n, oneLine(m.Content, 60))
			}
			printf(app.Out, "total: %d / %d tokens\n", total, cfg.TokenLimit)
			return nil
		},
	}
}

func newResetCmd(app App, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the persisted conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}
			if err := memory.NewStore(app.Fs, cfg.HistoryFile).Remove(); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			printf(app.Out, "removed %s\n", cfg.HistoryFile)
			return nil
		},
	}
}

func newCountCmd(app App, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "count [text...]",
		Short: "Count the tokens of the arguments, or of stdin when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}
			counter, err := tokenizer.ForEncoding(cfg.Encoding)
			if err != nil {
				return err
			}

			var text string
			if len(args) > 0 {
				text = strings.Join(args, " ")
			} else {
				b, err := io.ReadAll(app.In)
				if err != nil {
					return fmt.Errorf("count: read stdin: %w", err)
				}
				text = strings.TrimSuffix(string(b), "\n")
			}
			printf(app.Out, "%d\n", counter.Count(text))
			return nil
		},
	}
}

// oneLine flattens s and truncates it to width runes.
func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
