/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package content

import (
	"strings"

	"github.com/kentakayama/bt-verify/internal/util"
)

const unsafeEval = "'unsafe-eval'"

type cspPolicy map[string]util.Set[string]

func parseCSP(header string) cspPolicy {
	p := make(cspPolicy)
	for _, directive := range strings.Split(header, ";") {
		fields := strings.Fields(directive)
		if len(fields) == 0 {
			continue
		}
		p[strings.ToLower(fields[0])] = util.NewSet(fields[1:]...)
	}
	return p
}

// allowsEval reports whether the effective script source directive allows
// eval. script-src takes precedence over default-src. The second result is
// false when neither directive is present.
func (p cspPolicy) allowsEval() (bool, bool) {
	if values, ok := p["script-src"]; ok {
		return values.Has(unsafeEval), true
	}
	if values, ok := p["default-src"]; ok {
		return values.Has(unsafeEval), true
	}
	return false, false
}

// checkCSP decides whether eval use on a company page can be detected. An
// enforced policy without unsafe-eval blocks eval outright. Otherwise the
// report-only policy must exist and must not allow eval, so that eval calls
// are reported. It returns an empty string when the page passes, else the
// reason to log.
func checkCSP(policy, reportOnly string) string {
	if policy != "" {
		if allowed, found := parseCSP(policy).allowsEval(); found && !allowed {
			return ""
		}
	}
	if reportOnly == "" {
		return "Missing CSP report-only header"
	}
	if allowed, _ := parseCSP(reportOnly).allowsEval(); allowed {
		return "Missing unsafe-eval from CSP report-only header"
	}
	return ""
}
