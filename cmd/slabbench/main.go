// Copyright 2024 Slabmem Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		configPath string
		cfg        benchConfig
	)

	cmd := &cobra.Command{
		Use:   "slabbench",
		Short: "Benchmark the slab allocator family against plain Go allocation",
		Long:  "slabbench drives concurrent alloc/free workloads through a DynamicSlab and, for comparison, through make()+GC, reporting wall-clock time for each.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fileCfg, err := loadBenchConfig(configPath)
			if err != nil {
				return err
			}
			mergeBenchConfig(&cfg, fileCfg)

			slabResult, err := runSlabBenchmark(cfg)
			if err != nil {
				return err
			}
			printResult(slabResult)

			if cfg.UsePlainGo {
				plainResult, err := runPlainGoBenchmark(cfg)
				if err != nil {
					return err
				}
				printResult(plainResult)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "optional TOML config file")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 8, "number of concurrent workers")
	cmd.Flags().IntVar(&cfg.Iterations, "iterations", 100000, "alloc/free round-trips per worker")
	cmd.Flags().IntVar(&cfg.AllocSize, "alloc-size", 64, "bytes requested per allocation")
	cmd.Flags().Float64Var(&cfg.Scale, "scale", 1.0, "slab size-class scale factor")
	cmd.Flags().BoolVar(&cfg.UsePlainGo, "compare-plain-go", true, "also run the plain Go allocation baseline")

	return cmd
}

// mergeBenchConfig copies every non-zero numeric field of the file config
// over flagCfg, so a value set in the file replaces the flag value whether
// that flag was given explicitly or left at its default. UsePlainGo is not
// merged; only --compare-plain-go controls it.
func mergeBenchConfig(flagCfg *benchConfig, fileCfg benchConfig) {
	if fileCfg.Workers != 0 {
		flagCfg.Workers = fileCfg.Workers
	}
	if fileCfg.Iterations != 0 {
		flagCfg.Iterations = fileCfg.Iterations
	}
	if fileCfg.AllocSize != 0 {
		flagCfg.AllocSize = fileCfg.AllocSize
	}
	if fileCfg.Scale != 0 {
		flagCfg.Scale = fileCfg.Scale
	}
}

func printResult(r runResult) {
	fmt.Printf("%-10s allocs=%-10d elapsed=%-12s ns/op=%.1f\n",
		r.label, r.allocs, r.elapsed, float64(r.elapsed.Nanoseconds())/float64(r.allocs))
}
