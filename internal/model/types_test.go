package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStepKind_IsValid checks that only defined step kinds pass validation.
func TestStepKind_IsValid(t *testing.T) {
	assert.True(t, StepUninstall.IsValid())
	assert.True(t, StepInstall.IsValid())
	assert.False(t, StepKind("build").IsValid())
	assert.False(t, StepKind("").IsValid())
}

func TestStepKind_Title(t *testing.T) {
	assert.Equal(t, "Uninstall", StepUninstall.Title())
	assert.Equal(t, "Install", StepInstall.Title())
	assert.Equal(t, "", StepKind("").Title())
}

// TestParseFailurePolicy verifies string-to-policy conversion,
// including case normalization and error cases.
func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected FailurePolicy
		hasError bool
	}{
		{"continue", PolicyContinue, false},
		{"fail-fast", PolicyFailFast, false},
		{"FAIL-FAST", PolicyFailFast, false}, // case insensitive
		{"failfast", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseFailurePolicy(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestParseColorMode verifies that the empty string defaults to auto.
func TestParseColorMode(t *testing.T) {
	tests := []struct {
		input    string
		expected ColorMode
		hasError bool
	}{
		{"", ColorAuto, false},
		{"auto", ColorAuto, false},
		{"Always", ColorAlways, false},
		{"never", ColorNever, false},
		{"sometimes", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseColorMode(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestParseManagerFlavor(t *testing.T) {
	f, err := ParseManagerFlavor("UV")
	require.NoError(t, err)
	assert.Equal(t, FlavorUV, f)

	f, err = ParseManagerFlavor("pip")
	require.NoError(t, err)
	assert.Equal(t, FlavorPip, f)

	_, err = ParseManagerFlavor("conda")
	assert.Error(t, err)
}

// TestValidatePackageName checks accepted and rejected distribution names.
func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "demo", false},
		{"single character", "a", false},
		{"with separators", "tune-sync_tool.core", false},
		{"mixed case", "TuneSyncTool", false},
		{"empty", "", true},
		{"leading hyphen", "-demo", true},
		{"trailing dot", "demo.", true},
		{"space", "my package", true},
		{"version specifier", "demo==1.0", true},
		{"path", "./demo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizePackageName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"demo", "demo"},
		{"My_Package", "my-package"},
		{"my.package", "my-package"},
		{"my__--..package", "my-package"},
		{"TuneSyncTool", "tunesynctool"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePackageName(tt.input))
		})
	}
}

func TestStepResult(t *testing.T) {
	ok := StepResult{Kind: StepInstall, Argv: []string{"pip", "install", "-e", "."}}
	assert.True(t, ok.Succeeded())
	assert.Equal(t, "pip install -e .", ok.Command())

	failed := StepResult{Kind: StepUninstall, ExitCode: 1}
	assert.False(t, failed.Succeeded())
}

func TestReport_LastStep(t *testing.T) {
	r := &Report{}
	assert.Nil(t, r.LastStep())

	r.Steps = append(r.Steps,
		StepResult{Kind: StepUninstall, ExitCode: 1},
		StepResult{Kind: StepInstall, ExitCode: 0},
	)
	last := r.LastStep()
	require.NotNil(t, last)
	assert.Equal(t, StepInstall, last.Kind)
}

func TestPackageInfo_IsEditable(t *testing.T) {
	assert.False(t, PackageInfo{Name: "demo", Location: "/site-packages"}.IsEditable())
	assert.True(t, PackageInfo{Name: "demo", EditableLocation: "/src/demo"}.IsEditable())
}

// TestCLIError verifies message formatting, unwrapping and the silent form.
func TestCLIError(t *testing.T) {
	t.Run("message only", func(t *testing.T) {
		err := NewCLIError(ExitUsageError, "no package name")
		assert.Equal(t, "no package name", err.Error())
		assert.False(t, err.Silent())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("wrapped", func(t *testing.T) {
		inner := errors.New("permission denied")
		err := WrapCLIError(ExitGeneralError, "failed to read config", inner)
		assert.Equal(t, "failed to read config: permission denied", err.Error())
		assert.True(t, errors.Is(err, inner))
	})

	t.Run("silent exit", func(t *testing.T) {
		err := NewExitError(ExitCode(23), nil)
		assert.True(t, err.Silent())
		assert.Equal(t, "exit status 23", err.Error())
	})

	t.Run("silent exit with cause", func(t *testing.T) {
		inner := errors.New("exit status 1")
		err := NewExitError(ExitGeneralError, inner)
		assert.True(t, err.Silent())
		assert.Equal(t, "exit status 1", err.Error())
	})

	t.Run("errors.As through fmt wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("run: %w", NewCLIError(ExitVerifyFailed, "not linked"))
		var cliErr *CLIError
		require.True(t, errors.As(wrapped, &cliErr))
		assert.Equal(t, ExitVerifyFailed, cliErr.Code)
	})
}
