// Package coverage parses structured coverage reports produced by test
// runs. The supported format is Cobertura-style XML, the exchange format
// emitted by common coverage tools.
package coverage

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/harrison/stagehand/internal/models"
)

// xmlCoverage mirrors the root element of a Cobertura report
type xmlCoverage struct {
	XMLName      xml.Name     `xml:"coverage"`
	LineRate     float64      `xml:"line-rate,attr"`
	BranchRate   float64      `xml:"branch-rate,attr"`
	LinesValid   int          `xml:"lines-valid,attr"`
	LinesCovered int          `xml:"lines-covered,attr"`
	Packages     []xmlPackage `xml:"packages>package"`
}

// xmlPackage mirrors a package element
type xmlPackage struct {
	Name       string  `xml:"name,attr"`
	LineRate   float64 `xml:"line-rate,attr"`
	BranchRate float64 `xml:"branch-rate,attr"`
}

// ParseFile reads and parses a coverage report from disk
func ParseFile(path string) (*models.CoverageReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read coverage report: %w", err)
	}

	report, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	report.Path = path
	return report, nil
}

// Parse parses a coverage report from raw XML.
// Reports without branch data are accepted: branch-rate defaults to zero.
func Parse(data []byte) (*models.CoverageReport, error) {
	var raw xmlCoverage
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid coverage XML: %w", err)
	}

	if raw.LineRate < 0 || raw.LineRate > 1 {
		return nil, fmt.Errorf("line-rate %v out of range [0,1]", raw.LineRate)
	}
	if raw.BranchRate < 0 || raw.BranchRate > 1 {
		return nil, fmt.Errorf("branch-rate %v out of range [0,1]", raw.BranchRate)
	}
	if raw.LinesCovered > raw.LinesValid {
		return nil, fmt.Errorf("lines-covered %d exceeds lines-valid %d", raw.LinesCovered, raw.LinesValid)
	}

	report := &models.CoverageReport{
		LineRate:     raw.LineRate,
		BranchRate:   raw.BranchRate,
		LinesValid:   raw.LinesValid,
		LinesCovered: raw.LinesCovered,
	}

	for _, pkg := range raw.Packages {
		report.Packages = append(report.Packages, models.PackageCoverage{
			Name:       pkg.Name,
			LineRate:   pkg.LineRate,
			BranchRate: pkg.BranchRate,
		})
	}

	return report, nil
}
