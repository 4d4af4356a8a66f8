package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TransformParams holds the per-run options recognised by the pipeline.
// Values are copied into every component; nothing mutates them after Run starts.
type TransformParams struct {
	SheetName            string   `yaml:"sheet_name"`
	HeaderRow            int      `yaml:"header_row"`
	RequiredColumns      []string `yaml:"required_columns"`
	OutputDirectory      string   `yaml:"output_directory"`
	BackupDirectory      string   `yaml:"backup_directory"`
	MaxAttempts          int      `yaml:"max_attempts"`
	EnableAutomation     bool     `yaml:"enable_automation"`
	MaxAutomationRetries int      `yaml:"max_automation_retries"`
	SheetPassword        string   `yaml:"sheet_password"`
}

// Option keys accepted by ApplyOptions.
const (
	OptSheetName            = "sheet_name"
	OptHeaderRow            = "header_row"
	OptRequiredColumns      = "required_columns"
	OptOutputDirectory      = "output_directory"
	OptBackupDirectory      = "backup_directory"
	OptMaxAttempts          = "max_attempts"
	OptEnableAutomation     = "enable_automation"
	OptMaxAutomationRetries = "max_automation_retries"
	OptSheetPassword        = "sheet_password"
)

type optionSetter func(p *TransformParams, raw string) error

// recognizedOptions maps every option key to the field it sets.
var recognizedOptions = map[string]optionSetter{
	OptSheetName: func(p *TransformParams, raw string) error {
		p.SheetName = raw
		return nil
	},
	OptHeaderRow: func(p *TransformParams, raw string) error {
		return setInt(&p.HeaderRow, raw)
	},
	OptRequiredColumns: func(p *TransformParams, raw string) error {
		p.RequiredColumns = splitList(raw)
		return nil
	},
	OptOutputDirectory: func(p *TransformParams, raw string) error {
		p.OutputDirectory = raw
		return nil
	},
	OptBackupDirectory: func(p *TransformParams, raw string) error {
		p.BackupDirectory = raw
		return nil
	},
	OptMaxAttempts: func(p *TransformParams, raw string) error {
		return setInt(&p.MaxAttempts, raw)
	},
	OptEnableAutomation: func(p *TransformParams, raw string) error {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		p.EnableAutomation = v
		return nil
	},
	OptMaxAutomationRetries: func(p *TransformParams, raw string) error {
		return setInt(&p.MaxAutomationRetries, raw)
	},
	OptSheetPassword: func(p *TransformParams, raw string) error {
		p.SheetPassword = raw
		return nil
	},
}

// RecognizedOptions returns the sorted list of option keys.
func RecognizedOptions() []string {
	keys := make([]string, 0, len(recognizedOptions))
	for k := range recognizedOptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyOptions returns a copy of p with the given key/value overrides applied.
// Unknown keys and unparsable values are validation errors.
func (p TransformParams) ApplyOptions(opts map[string]string) (TransformParams, error) {
	out := p.Clone()

	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		set, ok := recognizedOptions[k]
		if !ok {
			return p, NewValidationError(fmt.Sprintf("unknown option %q", k))
		}
		if err := set(&out, opts[k]); err != nil {
			return p, NewValidationError(fmt.Sprintf("option %s: %v", k, err))
		}
	}
	return out, nil
}

// Clone returns a deep copy.
func (p TransformParams) Clone() TransformParams {
	out := p
	if p.RequiredColumns != nil {
		out.RequiredColumns = append([]string(nil), p.RequiredColumns...)
	}
	return out
}

// Validate checks value ranges.
func (p TransformParams) Validate() error {
	if strings.TrimSpace(p.SheetName) == "" {
		return NewValidationError("params: sheet_name is required")
	}
	if p.HeaderRow < 1 {
		return NewValidationError(fmt.Sprintf("params: header_row must be >= 1, got %d", p.HeaderRow))
	}
	if p.MaxAttempts < 1 {
		return NewValidationError(fmt.Sprintf("params: max_attempts must be >= 1, got %d", p.MaxAttempts))
	}
	if p.MaxAutomationRetries < 0 {
		return NewValidationError("params: max_automation_retries must be >= 0")
	}
	if strings.TrimSpace(p.OutputDirectory) == "" {
		return NewValidationError("params: output_directory is required")
	}
	return nil
}

func setInt(dst *int, raw string) error {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
