package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/config"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

type cliState struct {
	configPath string
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "abeval",
		Short:         "Evaluate answer quality across two platforms",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newStatusCmd(st))
	root.AddCommand(newDispatchCmd(st))
	root.AddCommand(newSampleCmd(st))
	root.AddCommand(newAnalyzeCmd(st))
	root.AddCommand(newExportCmd(st))
	root.AddCommand(newCatalogCmd(st))
	return root
}

// openEnv loads config, catalog, and store for one command invocation.
// The caller closes the returned store.
func openEnv(st *cliState) (*config.Config, *catalog.Catalog, store.Store, error) {
	cfg, err := loadConfig(st.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := openStore(cfg, cat)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, cat, s, nil
}
