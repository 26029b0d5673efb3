package campaign

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/sweep/internal/log"
)

// CriteriaResult is the verdict of a SuccessCriteria evaluation
type CriteriaResult struct {
	Success bool
	Errors  []string
}

type criteriaFlag struct {
	name      string
	substring string
}

func enabledFlags(c SuccessCriteria) []criteriaFlag {
	var flags []criteriaFlag
	if c.BuildSuccess {
		flags = append(flags, criteriaFlag{name: "buildSuccess", substring: "build"})
	}
	if c.TestsPass {
		flags = append(flags, criteriaFlag{name: "testsPass", substring: "test"})
	}
	if c.LintingPass {
		flags = append(flags, criteriaFlag{name: "lintingPass", substring: "lint"})
	}
	return flags
}

func matchesFlag(checkID, substring string) bool {
	return strings.Contains(strings.ToLower(checkID), substring)
}

// CriteriaEvaluator turns validation results and custom predicates into a
// phase verdict
type CriteriaEvaluator struct {
	logger          *log.Logger
	configValidator ConfigValidator
}

// NewCriteriaEvaluator creates an evaluator. opts.ConfigValidator backs the
// configurationValid flag.
func NewCriteriaEvaluator(opts Options) *CriteriaEvaluator {
	opts = opts.withDefaults()
	return &CriteriaEvaluator{
		logger:          opts.Logger,
		configValidator: opts.ConfigValidator,
	}
}

// Evaluate checks every enabled criterion. Each enabled build/test/lint flag
// needs at least one result whose check ID contains the flag's keyword, and
// all such results must have succeeded.
func (e *CriteriaEvaluator) Evaluate(ctx context.Context, criteria SuccessCriteria, results []ValidationResult) CriteriaResult {
	var errs []string

	for _, flag := range enabledFlags(criteria) {
		matched := 0
		for _, r := range results {
			if !matchesFlag(r.CheckID, flag.substring) {
				continue
			}
			matched++
			if !r.Success {
				errs = append(errs, fmt.Sprintf("%s: check %s failed", flag.name, r.CheckID))
			}
		}
		if matched == 0 {
			errs = append(errs, fmt.Sprintf("%s: no validation result matching %q", flag.name, flag.substring))
		}
	}

	if criteria.ConfigurationValid {
		switch {
		case e.configValidator == nil:
			errs = append(errs, "configurationValid: no configuration validator available")
		default:
			if err := e.validateConfig(ctx); err != nil {
				errs = append(errs, fmt.Sprintf("configurationValid: %v", err))
			}
		}
	}

	for _, check := range criteria.CustomChecks {
		ok, err := runCustomCheck(ctx, check)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("custom check %s: %v", check.Name, err))
		case !ok:
			errs = append(errs, fmt.Sprintf("custom check %s: returned false", check.Name))
		}
	}

	if len(errs) > 0 {
		e.logger.Debug("success criteria unmet", "errors", errs)
	}
	return CriteriaResult{Success: len(errs) == 0, Errors: errs}
}

func (e *CriteriaEvaluator) validateConfig(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.configValidator(ctx)
}

func runCustomCheck(ctx context.Context, check CustomCheck) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	if check.Validator == nil {
		return false, fmt.Errorf("no validator")
	}
	return check.Validator(ctx)
}
