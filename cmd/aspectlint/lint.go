package main

import (
	"fmt"

	"github.com/centraunit/aop/caching"
	"github.com/centraunit/aop/logging"
	"github.com/centraunit/aop/profiling"
	"github.com/centraunit/aop/resilience"
	"github.com/centraunit/aop/tracing"
	"github.com/centraunit/aop/yamlconfig"
)

// Severity grades a finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Finding is one remark about a configuration document.
type Finding struct {
	Severity Severity
	Service  string
	Message  string
}

// Report summarizes a linted document.
type Report struct {
	Services int
	Aspects  int
	Findings []Finding
}

// Warnings counts the warning findings.
func (r Report) Warnings() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// builtins returns a catalog of the aspect factories shipped with the module.
func builtins() *yamlconfig.Catalog {
	return yamlconfig.NewCatalog(
		logging.FactoryType,
		profiling.FactoryType,
		tracing.FactoryType,
		caching.FactoryType,
		resilience.BreakerFactoryType,
		resilience.LimiterFactoryType,
	)
}

func lint(doc *yamlconfig.Document, known *yamlconfig.Catalog) Report {
	r := Report{Services: len(doc.Services)}
	seen := make(map[string]int)

	for i, svc := range doc.Services {
		name := svc.Contract
		if svc.Implementation != "" {
			name += " => " + svc.Implementation
		}
		key := svc.Contract + "|" + svc.Implementation
		if prev, ok := seen[key]; ok {
			r.Findings = append(r.Findings, Finding{SeverityWarning, name,
				fmt.Sprintf("also configured in services[%d]; entries are merged", prev)})
		}
		seen[key] = i

		if svc.Implementation == "" && svc.Scope != "" {
			r.Findings = append(r.Findings, Finding{SeverityWarning, name,
				"scope is ignored without an implementation"})
		}

		factories := make(map[string]bool)
		orders := make(map[int]string)
		for _, a := range svc.Aspects {
			r.Aspects++
			if factories[a.Factory] {
				r.Findings = append(r.Findings, Finding{SeverityInfo, name,
					fmt.Sprintf("%s listed twice; method sets are merged and the first sort order wins", a.Factory)})
			}
			factories[a.Factory] = true

			if _, err := known.Lookup(a.Factory); err != nil {
				r.Findings = append(r.Findings, Finding{SeverityInfo, name,
					fmt.Sprintf("%s is not a built-in aspect; the application must add it to its catalog", a.Factory)})
			}
			if a.SortOrder != nil {
				if other, ok := orders[*a.SortOrder]; ok && other != a.Factory {
					r.Findings = append(r.Findings, Finding{SeverityWarning, name,
						fmt.Sprintf("%s and %s share sort order %d; they run in file order", other, a.Factory, *a.SortOrder)})
				}
				orders[*a.SortOrder] = a.Factory
			}
		}
	}
	return r
}
