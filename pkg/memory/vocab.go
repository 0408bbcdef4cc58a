package memory

import "strings"

// QueryContext is the structured context accompanying a query or a stored
// conversation; its lists seed entity and tag extraction.
type QueryContext struct {
	Regulations       []string `json:"regulations,omitempty"`
	Domains           []string `json:"domains,omitempty"`
	Jurisdictions     []string `json:"jurisdictions,omitempty"`
	BusinessFunctions []string `json:"business_functions,omitempty"`
	RiskLevel         string   `json:"risk_level,omitempty"`
}

// complianceVocabulary maps keywords found in query text to tags. This is a
// fixed vocabulary, not learned; it exists so untagged free-text queries
// still land in sensible clusters.
var complianceVocabulary = map[string]string{
	"breach":       "incident_response",
	"incident":     "incident_response",
	"consent":      "lawful_basis",
	"processing":   "data_processing",
	"transfer":     "data_transfer",
	"retention":    "data_retention",
	"audit":        "audit",
	"penalty":      "enforcement",
	"fine":         "enforcement",
	"enforcement":  "enforcement",
	"aml":          "financial_crime",
	"laundering":   "financial_crime",
	"kyc":          "customer_due_diligence",
	"sanction":     "sanctions",
	"privacy":      "privacy",
	"gdpr":         "privacy",
	"risk":         "risk_management",
	"control":      "controls",
	"vendor":       "third_party",
	"third-party":  "third_party",
	"governance":   "governance",
	"notification": "notification_duty",
}

func (qc QueryContext) entities() []string {
	var out []string
	out = append(out, qc.Regulations...)
	out = append(out, qc.Domains...)
	out = append(out, qc.Jurisdictions...)
	out = append(out, qc.BusinessFunctions...)
	return dedupe(out)
}

func (qc QueryContext) tags(query string) []string {
	var out []string

	out = append(out, qc.Domains...)

	if qc.RiskLevel != "" {
		out = append(out, "risk:"+qc.RiskLevel)
	}

	lowered := strings.ToLower(query)

	for keyword, tag := range complianceVocabulary {
		if strings.Contains(lowered, keyword) {
			out = append(out, tag)
		}
	}

	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))

	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}

	return out
}

func toSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, s := range in {
		out[s] = true
	}
	return out
}
