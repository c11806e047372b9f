package domain

// ReputationRecord is what a reputation provider knows about an address.
type ReputationRecord struct {
	AbuseScore    float64 `json:"abuse_score"` // 0-100
	Country       string  `json:"country"`
	IsWhitelisted bool    `json:"is_whitelisted"`
	TotalReports  int     `json:"total_reports,omitempty"`
	ISP           string  `json:"isp,omitempty"`
	Domain        string  `json:"domain,omitempty"`
}

// KeywordScanResult is the output of the lexical scanner.
type KeywordScanResult struct {
	Score          float64            `json:"score"`
	Matches        []string           `json:"matches"`
	TotalMatches   int                `json:"total_matches"`
	Categories     []string           `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
	Density        float64            `json:"density"`
}

// Severity of an individual finding or pattern. Shares values with ThreatLevel.
type Severity = ThreatLevel

// Finding is a single network observation (an exposed service or a bad reputation).
type Finding struct {
	Port        int      `json:"port"`
	Service     string   `json:"service"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

type PatternType string

const (
	PatternBruteForce  PatternType = "brute_force"
	PatternDistributed PatternType = "distributed"
	PatternNetworkScan PatternType = "network_scan"
	PatternNormal      PatternType = "normal"
)

// AttackPattern is an aggregate behavior detected in an auth log.
type AttackPattern struct {
	Type        PatternType `json:"type"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severity"`
}

// Attacker is one source address from an auth log, optionally enriched.
type Attacker struct {
	IP            string   `json:"ip"`
	Attempts      int      `json:"attempts"`
	Percentage    float64  `json:"percentage"`
	AbuseScore    *float64 `json:"abuse_score"`
	Country       string   `json:"country"`
	IsWhitelisted bool     `json:"is_whitelisted"`
}

// Technology is a component detected on a website.
type Technology struct {
	Name       string  `json:"name"`
	Version    string  `json:"version,omitempty"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// CatalogEntry is one row of the static vulnerability catalog.
type CatalogEntry struct {
	Technology     string    `yaml:"technology" json:"technology"`
	VersionRange   [2]string `yaml:"version_range" json:"version_range"`
	CVEID          string    `yaml:"cve_id" json:"cve_id"`
	Description    string    `yaml:"description" json:"description"`
	Severity       Severity  `yaml:"severity" json:"severity"`
	CVSSScore      float64   `yaml:"cvss_score" json:"cvss_score"`
	PatchAvailable bool      `yaml:"patch_available" json:"patch_available"`
	PublishedDate  string    `yaml:"published_date" json:"published_date"`
}

// CVEInfo is a catalog entry reported against a detected technology.
type CVEInfo struct {
	CVEID            string   `json:"cve_id"`
	Technology       string   `json:"technology"`
	Description      string   `json:"description"`
	Severity         Severity `json:"severity"`
	CVSSScore        float64  `json:"cvss_score"`
	AffectedVersions []string `json:"affected_versions"`
	PatchAvailable   bool     `json:"patch_available"`
	PublishedDate    string   `json:"published_date"`
}
