// Package doctor runs environment preflight checks: required binaries on
// PATH (fatal when missing) and advisory machine-resource minimums
// (warnings, never fatal).
package doctor

import (
	"fmt"
	"os/exec"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/jmcrae/wrangler/internal/config"
	"github.com/jmcrae/wrangler/internal/errors"
)

// Severity classifies a check result.
type Severity string

const (
	SeverityOK   Severity = "ok"
	SeverityWarn Severity = "warn"
	SeverityFail Severity = "fail"
)

// CheckResult is one preflight check's outcome.
type CheckResult struct {
	Name     string
	Severity Severity
	Detail   string
}

// lookPath is swappable in tests.
var lookPath = exec.LookPath

// Run executes all preflight checks for the working directory. A fail
// result means the run cannot proceed; warn results are advisory only.
func Run(cfg *config.Config, workDir string) []CheckResult {
	var results []CheckResult

	results = append(results, checkBinary("git"))
	results = append(results, checkBinary(cfg.Worker.Command))
	results = append(results, checkDisk(workDir, cfg.Resources.MinFreeDiskMB))
	results = append(results, checkMemory(cfg.Resources.MinFreeMemoryMB))

	return results
}

// Fatal returns a ConfigurationError when any check failed outright.
func Fatal(results []CheckResult) error {
	for _, r := range results {
		if r.Severity == SeverityFail {
			return errors.NewConfigurationError(r.Detail, nil)
		}
	}
	return nil
}

// checkBinary verifies an executable is reachable on PATH.
func checkBinary(name string) CheckResult {
	result := CheckResult{Name: "binary: " + name}
	path, err := lookPath(name)
	if err != nil {
		result.Severity = SeverityFail
		result.Detail = fmt.Sprintf("required binary %q not found on PATH", name)
		return result
	}
	result.Severity = SeverityOK
	result.Detail = path
	return result
}

// checkDisk compares free disk space against the advisory minimum.
func checkDisk(path string, minFreeMB uint64) CheckResult {
	result := CheckResult{Name: "free disk"}
	usage, err := disk.Usage(path)
	if err != nil {
		result.Severity = SeverityWarn
		result.Detail = fmt.Sprintf("could not read disk usage: %v", err)
		return result
	}

	freeMB := usage.Free / (1024 * 1024)
	if minFreeMB > 0 && freeMB < minFreeMB {
		result.Severity = SeverityWarn
		result.Detail = fmt.Sprintf("%d MB free, below the advisory minimum of %d MB", freeMB, minFreeMB)
		return result
	}
	result.Severity = SeverityOK
	result.Detail = fmt.Sprintf("%d MB free", freeMB)
	return result
}

// checkMemory compares available memory against the advisory minimum.
func checkMemory(minFreeMB uint64) CheckResult {
	result := CheckResult{Name: "free memory"}
	vm, err := mem.VirtualMemory()
	if err != nil {
		result.Severity = SeverityWarn
		result.Detail = fmt.Sprintf("could not read memory stats: %v", err)
		return result
	}

	availMB := vm.Available / (1024 * 1024)
	if minFreeMB > 0 && availMB < minFreeMB {
		result.Severity = SeverityWarn
		result.Detail = fmt.Sprintf("%d MB available, below the advisory minimum of %d MB", availMB, minFreeMB)
		return result
	}
	result.Severity = SeverityOK
	result.Detail = fmt.Sprintf("%d MB available", availMB)
	return result
}
