package attackflowcore

import "strings"

// TacticUnknown is the resolved tactic name for actions whose tactic could
// not be determined from the document.
const TacticUnknown = "Unknown"

type attackTactic struct {
	Code string
	Name string
}

// attackTactics maps ATT&CK tactic codes to display names. Enterprise
// entries come first so that name-to-code recovery prefers the Enterprise
// code when Mobile or ICS reuse a tactic name.
var attackTactics = []attackTactic{
	// Enterprise
	{"TA0043", "Reconnaissance"},
	{"TA0042", "Resource Development"},
	{"TA0001", "Initial Access"},
	{"TA0002", "Execution"},
	{"TA0003", "Persistence"},
	{"TA0004", "Privilege Escalation"},
	{"TA0005", "Defense Evasion"},
	{"TA0006", "Credential Access"},
	{"TA0007", "Discovery"},
	{"TA0008", "Lateral Movement"},
	{"TA0009", "Collection"},
	{"TA0011", "Command and Control"},
	{"TA0010", "Exfiltration"},
	{"TA0040", "Impact"},
	// Mobile
	{"TA0027", "Initial Access"},
	{"TA0041", "Execution"},
	{"TA0028", "Persistence"},
	{"TA0029", "Privilege Escalation"},
	{"TA0030", "Defense Evasion"},
	{"TA0031", "Credential Access"},
	{"TA0032", "Discovery"},
	{"TA0033", "Lateral Movement"},
	{"TA0035", "Collection"},
	{"TA0037", "Command and Control"},
	{"TA0036", "Exfiltration"},
	{"TA0034", "Impact"},
	{"TA0038", "Network Effects"},
	{"TA0039", "Remote Service Effects"},
	// ICS
	{"TA0108", "Initial Access"},
	{"TA0104", "Execution"},
	{"TA0110", "Persistence"},
	{"TA0111", "Privilege Escalation"},
	{"TA0103", "Evasion"},
	{"TA0102", "Discovery"},
	{"TA0109", "Lateral Movement"},
	{"TA0100", "Collection"},
	{"TA0101", "Command and Control"},
	{"TA0107", "Inhibit Response Function"},
	{"TA0106", "Impair Process Control"},
	{"TA0105", "Impact"},
}

var tacticNameByCode = func() map[string]string {
	m := make(map[string]string, len(attackTactics))
	for _, t := range attackTactics {
		if _, ok := m[t.Code]; !ok {
			m[t.Code] = t.Name
		}
	}
	return m
}()

// tacticNameForCode resolves a tactic code like "TA0001" to its display
// name. The second return reports whether the code is known.
func tacticNameForCode(code string) (string, bool) {
	name, ok := tacticNameByCode[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

// tacticCodeForName recovers a tactic code from a display name,
// case-insensitively. Scans the ordered table so Enterprise codes win.
func tacticCodeForName(name string) (string, bool) {
	for _, t := range attackTactics {
		if strings.EqualFold(t.Name, name) {
			return t.Code, true
		}
	}
	return "", false
}

// titleCasePhase turns a kill-chain phase name like "initial-access" into
// the ATT&CK display form "Initial Access".
func titleCasePhase(phase string) string {
	words := strings.Split(strings.TrimSpace(phase), "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// techniqueDigitTactics is the fallback lookup used by
// InferTacticFromTechnique: the second character of a technique id, a
// digit, picks a coarse tactic guess.
var techniqueDigitTactics = map[byte]string{
	'0': "Reconnaissance",
	'1': "Initial Access",
	'2': "Execution",
	'3': "Persistence",
	'4': "Privilege Escalation",
	'5': "Defense Evasion",
	'6': "Credential Access",
	'7': "Discovery",
	'8': "Lateral Movement",
	'9': "Collection",
}

// InferTacticFromTechnique derives a best-guess tactic name from a
// technique id for callers that have no resolved tactic. Returns
// TacticUnknown when the id is too short or the digit is not mapped.
func InferTacticFromTechnique(techniqueID string) string {
	if len(techniqueID) < 2 {
		return TacticUnknown
	}
	if name, ok := techniqueDigitTactics[techniqueID[1]]; ok {
		return name
	}
	return TacticUnknown
}
