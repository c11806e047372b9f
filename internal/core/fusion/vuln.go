package fusion

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the read-only vulnerability table, indexed by lower-cased
// technology name.
type Catalog struct {
	entries map[string][]domain.CatalogEntry
	size    int

	// FailOpen treats unparseable versions as vulnerable.
	FailOpen bool
}

// DefaultCatalog returns the catalog compiled into the binary, failing open.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a YAML catalog file; an empty path returns the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CVE catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var rows []domain.CatalogEntry
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CVE catalog: %w", err)
	}

	c := &Catalog{entries: make(map[string][]domain.CatalogEntry), FailOpen: true}
	for i, row := range rows {
		if row.Technology == "" || row.CVEID == "" {
			return nil, fmt.Errorf("CVE catalog row %d: technology and cve_id are required", i)
		}
		row.Severity = domain.ParseThreatLevel(string(row.Severity))
		key := strings.ToLower(row.Technology)
		c.entries[key] = append(c.entries[key], row)
		c.size++
	}
	return c, nil
}

// Len returns the number of catalog rows.
func (c *Catalog) Len() int { return c.size }

// LookupVulnerabilities returns the catalog entries affecting the given
// technologies. A technology without a version matches every entry for its
// name. A CVE is reported once even if several technologies match it.
func (c *Catalog) LookupVulnerabilities(technologies []domain.Technology) []domain.CVEInfo {
	found := []domain.CVEInfo{}
	seen := make(map[string]bool)
	for _, tech := range technologies {
		for _, entry := range c.entries[strings.ToLower(strings.TrimSpace(tech.Name))] {
			if tech.Version != "" && !domain.VersionInRange(tech.Version, entry.VersionRange[0], entry.VersionRange[1], c.FailOpen) {
				continue
			}
			if seen[entry.CVEID] {
				continue
			}
			seen[entry.CVEID] = true
			found = append(found, domain.CVEInfo{
				CVEID:            entry.CVEID,
				Technology:       entry.Technology,
				Description:      entry.Description,
				Severity:         entry.Severity,
				CVSSScore:        entry.CVSSScore,
				AffectedVersions: []string{entry.VersionRange[0], entry.VersionRange[1]},
				PatchAvailable:   entry.PatchAvailable,
				PublishedDate:    entry.PublishedDate,
			})
		}
	}
	return found
}

// OverallRisk grades a set of vulnerabilities.
func OverallRisk(cves []domain.CVEInfo) domain.ThreatLevel {
	var critical, high int
	for _, v := range cves {
		switch v.Severity {
		case domain.LevelCritical:
			critical++
		case domain.LevelHigh:
			high++
		}
	}
	switch {
	case critical > 0:
		return domain.LevelCritical
	case high >= 2:
		return domain.LevelHigh
	case high > 0 || len(cves) >= 3:
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}

// MaxCVSS is the highest CVSS score of the set divided by ten, or 0.
func MaxCVSS(cves []domain.CVEInfo) float64 {
	best := 0.0
	for _, v := range cves {
		if v.CVSSScore > best {
			best = v.CVSSScore
		}
	}
	return domain.Clamp(best/10, 0, 1)
}

// VulnerabilityRecommendations lists remediation steps, most severe CVEs first.
func VulnerabilityRecommendations(cves []domain.CVEInfo) []string {
	list := NewList(MaxRecommendations)
	if len(cves) == 0 {
		return list.Add(
			"No known vulnerability matched the detected technologies",
			"Keep every detected component up to date",
		).Items()
	}

	if OverallRisk(cves) == domain.LevelCritical {
		list.Add("Patch or isolate services affected by critical vulnerabilities immediately")
	}
	for _, level := range []domain.ThreatLevel{domain.LevelCritical, domain.LevelHigh, domain.LevelMedium, domain.LevelLow} {
		for _, v := range cves {
			if v.Severity != level {
				continue
			}
			if v.PatchAvailable {
				list.Add(fmt.Sprintf("Apply the vendor patch for %s (%s)", v.CVEID, v.Technology))
			} else {
				list.Add(fmt.Sprintf("Mitigate %s (%s) until a patch is released", v.CVEID, v.Technology))
			}
		}
	}
	list.Add("Keep every detected component up to date")
	return list.Items()
}
