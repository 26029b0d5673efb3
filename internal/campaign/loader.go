package campaign

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/sweep/internal/errors"
)

// campaignFile is the on-disk YAML form of a Campaign
type campaignFile struct {
	Name        string      `yaml:"name" validate:"required"`
	Description string      `yaml:"description"`
	WorkDir     string      `yaml:"workDir"`
	Phases      []phaseFile `yaml:"phases" validate:"required,min=1,dive"`
}

type phaseFile struct {
	ID               string       `yaml:"id" validate:"required"`
	Name             string       `yaml:"name"`
	Description      string       `yaml:"description"`
	Prerequisites    []string     `yaml:"prerequisites" validate:"dive,required"`
	Tasks            []taskFile   `yaml:"tasks" validate:"dive"`
	RollbackTasks    []taskFile   `yaml:"rollbackTasks" validate:"dive"`
	ValidationChecks []checkFile  `yaml:"validationChecks" validate:"dive"`
	SuccessCriteria  criteriaFile `yaml:"successCriteria"`
}

type taskFile struct {
	ID        string            `yaml:"id" validate:"required"`
	Name      string            `yaml:"name"`
	Command   string            `yaml:"command" validate:"required"`
	Args      []string          `yaml:"args"`
	TimeoutMs int64             `yaml:"timeoutMs" validate:"gte=0"`
	Retries   int               `yaml:"retries" validate:"gte=0,lte=10"`
	Critical  bool              `yaml:"critical"`
	Env       map[string]string `yaml:"env"`
}

type checkFile struct {
	ID               string      `yaml:"id" validate:"required"`
	Name             string      `yaml:"name"`
	Kind             string      `yaml:"kind" validate:"required,oneof=build test lint custom"`
	Command          string      `yaml:"command" validate:"required"`
	Args             []string    `yaml:"args"`
	TimeoutMs        int64       `yaml:"timeoutMs" validate:"gte=0"`
	ExpectedExitCode int         `yaml:"expectedExitCode" validate:"gte=0,lte=255"`
	Output           *outputFile `yaml:"output"`
}

type outputFile struct {
	Contains    []string `yaml:"contains"`
	NotContains []string `yaml:"notContains"`
	Matches     string   `yaml:"matches"`
}

type criteriaFile struct {
	BuildSuccess       bool              `yaml:"buildSuccess"`
	TestsPass          bool              `yaml:"testsPass"`
	LintingPass        bool              `yaml:"lintingPass"`
	ConfigurationValid bool              `yaml:"configurationValid"`
	CustomChecks       []customCheckFile `yaml:"customChecks" validate:"dive"`
}

type customCheckFile struct {
	Name string            `yaml:"name" validate:"required"`
	Uses string            `yaml:"uses"`
	With map[string]string `yaml:"with"`
}

var campaignValidate = newCampaignValidator()

func newCampaignValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads and validates a campaign file. Relative workDir values resolve
// against the file's directory. registry resolves custom check names and may
// be nil when the campaign uses none.
func Load(path string, registry *CustomCheckRegistry) (*Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read campaign file", err)
	}

	baseDir := filepath.Dir(path)
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}

	return parse(data, path, baseDir, registry)
}

// Parse decodes campaign YAML. baseDir anchors a relative workDir.
func Parse(data []byte, baseDir string, registry *CustomCheckRegistry) (*Campaign, error) {
	return parse(data, "campaign", baseDir, registry)
}

func parse(data []byte, source, baseDir string, registry *CustomCheckRegistry) (*Campaign, error) {
	var file campaignFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.NewConfigUnmarshalError(source, err)
	}

	if err := campaignValidate.Struct(&file); err != nil {
		return nil, errors.NewConfigInvalidError(source, describeValidation(err))
	}

	workDir := file.WorkDir
	switch {
	case workDir == "":
		workDir = baseDir
	case !filepath.IsAbs(workDir) && baseDir != "":
		workDir = filepath.Join(baseDir, workDir)
	}

	c := &Campaign{
		Name:        file.Name,
		Description: file.Description,
		WorkDir:     workDir,
		Fingerprint: Fingerprint(data),
	}

	var problems []string
	seenPhases := make(map[string]bool)
	for _, pf := range file.Phases {
		if seenPhases[pf.ID] {
			problems = append(problems, fmt.Sprintf("duplicate phase id %q", pf.ID))
			continue
		}
		seenPhases[pf.ID] = true

		phase, phaseProblems := buildPhase(pf, workDir, registry)
		problems = append(problems, phaseProblems...)
		c.Phases = append(c.Phases, phase)
		c.Warnings = append(c.Warnings, criteriaWarnings(phase)...)
	}

	if len(problems) > 0 {
		return nil, errors.NewConfigInvalidError(source, strings.Join(problems, "; "))
	}
	return c, nil
}

// Fingerprint returns the hex blake3 digest of a campaign definition
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

func buildPhase(pf phaseFile, workDir string, registry *CustomCheckRegistry) (Phase, []string) {
	var problems []string
	prefix := "phase " + pf.ID + ": "

	phase := Phase{
		ID:            pf.ID,
		Name:          pf.Name,
		Description:   pf.Description,
		Prerequisites: pf.Prerequisites,
		SuccessCriteria: SuccessCriteria{
			BuildSuccess:       pf.SuccessCriteria.BuildSuccess,
			TestsPass:          pf.SuccessCriteria.TestsPass,
			LintingPass:        pf.SuccessCriteria.LintingPass,
			ConfigurationValid: pf.SuccessCriteria.ConfigurationValid,
		},
	}
	if phase.Name == "" {
		phase.Name = pf.ID
	}

	seen := make(map[string]bool)
	for _, tf := range pf.Tasks {
		if seen[tf.ID] {
			problems = append(problems, prefix+fmt.Sprintf("duplicate task id %q", tf.ID))
		}
		seen[tf.ID] = true
		phase.Tasks = append(phase.Tasks, buildTask(tf))
	}

	seen = make(map[string]bool)
	for _, tf := range pf.RollbackTasks {
		if seen[tf.ID] {
			problems = append(problems, prefix+fmt.Sprintf("duplicate rollback task id %q", tf.ID))
		}
		seen[tf.ID] = true
		phase.RollbackTasks = append(phase.RollbackTasks, buildTask(tf))
	}

	seen = make(map[string]bool)
	for _, cf := range pf.ValidationChecks {
		if seen[cf.ID] {
			problems = append(problems, prefix+fmt.Sprintf("duplicate check id %q", cf.ID))
		}
		seen[cf.ID] = true

		check := ValidationCheck{
			ID:               cf.ID,
			Name:             cf.Name,
			Kind:             CheckKind(cf.Kind),
			Command:          cf.Command,
			Args:             cf.Args,
			Timeout:          time.Duration(cf.TimeoutMs) * time.Millisecond,
			ExpectedExitCode: cf.ExpectedExitCode,
		}
		if check.Name == "" {
			check.Name = cf.ID
		}
		if cf.Output != nil {
			ov, err := compileOutputValidator(*cf.Output)
			if err != nil {
				problems = append(problems, prefix+fmt.Sprintf("check %s: %v", cf.ID, err))
			}
			check.OutputValidator = ov
		}
		phase.ValidationChecks = append(phase.ValidationChecks, check)
	}

	for _, cc := range pf.SuccessCriteria.CustomChecks {
		uses := cc.Uses
		if uses == "" {
			uses = cc.Name
		}
		if registry == nil {
			problems = append(problems, prefix+fmt.Sprintf("custom check %s: no custom checks are registered", cc.Name))
			continue
		}
		v, err := registry.Build(uses, workDir, cc.With)
		if err != nil {
			problems = append(problems, prefix+fmt.Sprintf("custom check %s: %v", cc.Name, err))
			continue
		}
		phase.SuccessCriteria.CustomChecks = append(phase.SuccessCriteria.CustomChecks, CustomCheck{Name: cc.Name, Validator: v})
	}

	return phase, problems
}

func buildTask(tf taskFile) Task {
	return Task{
		ID:       tf.ID,
		Name:     tf.Name,
		Command:  tf.Command,
		Args:     tf.Args,
		Timeout:  time.Duration(tf.TimeoutMs) * time.Millisecond,
		Retries:  tf.Retries,
		Critical: tf.Critical,
		Env:      tf.Env,
	}
}

// compileOutputValidator turns the declarative output block into a predicate.
// All conditions must hold.
func compileOutputValidator(of outputFile) (OutputValidator, error) {
	var re *regexp.Regexp
	if of.Matches != "" {
		var err error
		re, err = regexp.Compile(of.Matches)
		if err != nil {
			return nil, fmt.Errorf("invalid output.matches pattern: %w", err)
		}
	}
	contains := append([]string(nil), of.Contains...)
	notContains := append([]string(nil), of.NotContains...)

	return func(output string) bool {
		for _, s := range contains {
			if !strings.Contains(output, s) {
				return false
			}
		}
		for _, s := range notContains {
			if strings.Contains(output, s) {
				return false
			}
		}
		return re == nil || re.MatchString(output)
	}, nil
}

// criteriaWarnings flags enabled criteria that no check in the phase can satisfy
func criteriaWarnings(p Phase) []string {
	var warnings []string
	for _, flag := range enabledFlags(p.SuccessCriteria) {
		found := false
		for _, check := range p.ValidationChecks {
			if matchesFlag(check.ID, flag.substring) {
				found = true
				break
			}
		}
		if !found {
			warnings = append(warnings, fmt.Sprintf("phase %s: %s is required but no validation check id contains %q", p.ID, flag.name, flag.substring))
		}
	}
	return warnings
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "campaignFile.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s needs at least %s entries", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value())))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return strings.Join(msgs, "; ")
}
