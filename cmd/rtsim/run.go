package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sparkrt/internal/scenario"
	"sparkrt/sparkos/tasks/ps"
)

func newRunCmd(rf *rootFlags) *cobra.Command {
	var (
		trace  bool
		asYAML bool
	)
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := rf.logger(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				sc, err := scenario.LoadFile(path)
				if err != nil {
					return err
				}
				res, runErr := scenario.Run(sc, scenario.WithLogger(log))
				if asYAML {
					if err := writeYAML(out, res, runErr); err != nil {
						return err
					}
				} else {
					writeText(out, res, runErr, trace)
				}
				if runErr != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%s of %d scenarios failed", humanize.Comma(int64(failed)), len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "Print every context switch")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the result as YAML")
	return cmd
}

func writeText(w io.Writer, res *scenario.Result, runErr error, trace bool) {
	status := "PASS"
	if runErr != nil {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s %s (run %s, %s switches)\n", status, res.Name, res.RunID, humanize.Comma(int64(len(res.Switches))))
	if runErr != nil {
		fmt.Fprintf(w, "  %v\n", runErr)
	}
	if trace {
		for _, sw := range res.Switches {
			fmt.Fprintf(w, "  step %-3d %-12s %s -> %s\n", sw.Step, sw.Op, sw.From, sw.To)
		}
	}
	for _, line := range ps.Table(res.Threads, res.Stats) {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

type yamlThread struct {
	ID       uint8  `yaml:"id"`
	Name     string `yaml:"name"`
	Priority uint8  `yaml:"priority"`
	State    string `yaml:"state"`
	Stack    string `yaml:"stack"`
	Runs     uint64 `yaml:"runs"`
}

type yamlResult struct {
	Name     string            `yaml:"name"`
	Run      string            `yaml:"run"`
	Error    string            `yaml:"error,omitempty"`
	Ticks    uint64            `yaml:"ticks"`
	Switches []scenario.Switch `yaml:"switches"`
	Threads  []yamlThread      `yaml:"threads"`
}

func writeYAML(w io.Writer, res *scenario.Result, runErr error) error {
	out := yamlResult{
		Name:     res.Name,
		Run:      res.RunID,
		Ticks:    res.Stats.Ticks,
		Switches: res.Switches,
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	for _, ti := range res.Threads {
		out.Threads = append(out.Threads, yamlThread{
			ID:       uint8(ti.ID),
			Name:     ti.Name,
			Priority: ti.Priority,
			State:    ti.Label(),
			Stack:    humanize.IBytes(uint64(ti.StackSize)),
			Runs:     ti.Runs,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode([]yamlResult{out}); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return enc.Close()
}
