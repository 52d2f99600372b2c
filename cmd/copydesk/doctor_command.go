package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

type checkResult struct {
	name   string
	passed bool
	detail string
}

// newDoctorCommand verifies the local environment: configuration, data and
// log directories, free disk space, and the content store itself.
func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, directories, and store health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []checkResult

			cfg, err := ctx.ensureConfig()
			if err != nil {
				results = append(results, checkResult{name: "Configuration", detail: err.Error()})
				printChecks(cmd, results)
				return fmt.Errorf("doctor found problems")
			}
			results = append(results, checkResult{name: "Configuration", passed: true, detail: ctx.cfgPath})

			if err := cfg.EnsureDirectories(); err != nil {
				results = append(results, checkResult{name: "Directories", detail: err.Error()})
			} else {
				results = append(results, checkDirectory("Data directory", cfg.Paths.DataDir))
				results = append(results, checkDirectory("Log directory", cfg.Paths.LogDir))
				results = append(results, checkFreeSpace(cfg.Paths.DataDir))
			}

			st, err := ctx.openStore()
			if err != nil {
				results = append(results, checkResult{name: "Content store", detail: err.Error()})
			} else {
				records, err := st.List(cmd.Context())
				if err != nil {
					results = append(results, checkResult{name: "Content store", detail: err.Error()})
				} else {
					results = append(results, checkResult{
						name:   "Content store",
						passed: true,
						detail: fmt.Sprintf("%s (%d items)", st.Path(), len(records)),
					})
				}
			}

			results = append(results, checkResult{
				name:   "Workflows",
				passed: true,
				detail: fmt.Sprintf("%d registered", len(ctx.registry.Names())),
			})

			printChecks(cmd, results)
			for _, result := range results {
				if !result.passed {
					return fmt.Errorf("doctor found problems")
				}
			}
			return nil
		},
	}
}

func checkDirectory(name, path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{name: name, detail: fmt.Sprintf("%s (%v)", path, err)}
	}
	if !info.IsDir() {
		return checkResult{name: name, detail: fmt.Sprintf("%s is not a directory", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return checkResult{name: name, detail: fmt.Sprintf("%s (insufficient permissions: %v)", path, err)}
	}
	return checkResult{name: name, passed: true, detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func checkFreeSpace(path string) checkResult {
	const name = "Free space"
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return checkResult{name: name, detail: fmt.Sprintf("statfs %s: %v", path, err)}
	}
	free := int64(stat.Bavail) * stat.Bsize
	// A content store on a nearly full disk fails in confusing ways, so
	// warn below 100 MiB.
	const minFree = 100 << 20
	if free < minFree {
		return checkResult{name: name, detail: fmt.Sprintf("only %s free at %s", humanBytes(free), path)}
	}
	return checkResult{name: name, passed: true, detail: fmt.Sprintf("%s free", humanBytes(free))}
}

func printChecks(cmd *cobra.Command, results []checkResult) {
	out := cmd.OutOrStdout()
	for _, result := range results {
		mark := "FAIL"
		if result.passed {
			mark = "ok"
		}
		fmt.Fprintf(out, "%-16s %-4s %s\n", result.name, mark, result.detail)
	}
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div := int64(unit)
	exp := 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(v) / float64(div)
	return fmt.Sprintf("%.1f %ciB", value, "KMGTPEZY"[exp])
}
