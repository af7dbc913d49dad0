package models

import "fmt"

// CoverageReport is the parsed form of a structured coverage artifact
// produced by a test run
type CoverageReport struct {
	LineRate     float64           // Fraction of lines covered (0..1)
	BranchRate   float64           // Fraction of branches covered (0..1)
	LinesValid   int               // Total coverable lines
	LinesCovered int               // Lines executed at least once
	Packages     []PackageCoverage // Per-package breakdown
	Path         string            // Source report file path
}

// PackageCoverage is the coverage breakdown for one package/module
type PackageCoverage struct {
	Name       string
	LineRate   float64
	BranchRate float64
}

// Summary returns a one-line human-readable coverage summary
func (c *CoverageReport) Summary() string {
	return fmt.Sprintf("%.1f%% lines (%d/%d), %.1f%% branches",
		c.LineRate*100, c.LinesCovered, c.LinesValid, c.BranchRate*100)
}
