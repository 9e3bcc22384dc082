package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/barcodekit/internal/testutil"
)

// commandTimeout bounds every CLI invocation.
const commandTimeout = 30 * time.Second

// splitCommand splits a command line on whitespace. Single or double quotes
// group words.
func splitCommand(command string) ([]string, error) {
	var (
		parts   []string
		current strings.Builder
		quote   rune
		inWord  bool
	)
	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				parts = append(parts, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %s", command)
	}
	if inWord {
		parts = append(parts, current.String())
	}
	return parts, nil
}

// resolveBinary maps the bare CLI name to the binary built by TestMain.
func resolveBinary(name string) string {
	if name != "barcodekit" {
		return name
	}
	if bin := os.Getenv("BARCODEKIT_BIN"); bin != "" {
		return bin
	}
	if root, err := testutil.GetProjectRoot(); err == nil {
		return filepath.Join(root, "bin", "barcodekit")
	}
	return name
}

// iRunCommand executes a CLI command and records its output and exit code.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts, err := splitCommand(command)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, resolveBinary(parts[0]), parts[1:]...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	testCtx.LastStdout = stdout.String()
	testCtx.LastOutput = stdout.String() + stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}

	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains the expected text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteCommandVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain %q\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldNotContain verifies the output lacks the given text.
func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains %q\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention verifies the failure output mentions the given text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if !strings.Contains(strings.ToLower(testCtx.LastOutput), strings.ToLower(errorText)) {
		return fmt.Errorf("error output does not mention %q\nActual output: %s", errorText, testCtx.LastOutput)
	}
	return nil
}

// stdoutJSON parses standard output. Logs go to stderr and are not part of it.
func (testCtx *TestContext) stdoutJSON() (interface{}, error) {
	var data interface{}
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastStdout)
	}
	return data, nil
}

// theOutputShouldBeValidJSON verifies the output is a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.stdoutJSON()
	return err
}

// theJSONShouldContain verifies a dotted path such as "0.symbols.0.text"
// exists in the JSON output.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	data, err := testCtx.stdoutJSON()
	if err != nil {
		return err
	}
	_, err = lookupJSONPath(data, field)
	return err
}

// theJSONFieldShouldBe compares the value at a dotted path.
func (testCtx *TestContext) theJSONFieldShouldBe(field, expected string) error {
	data, err := testCtx.stdoutJSON()
	if err != nil {
		return err
	}
	v, err := lookupJSONPath(data, field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("JSON field %s = %q, want %q", field, got, expected)
	}
	return nil
}

func lookupJSONPath(data interface{}, path string) (interface{}, error) {
	current := data
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("JSON field %q not found (at %q)", path, part)
			}
			current = v
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("JSON index %q out of range for %q", part, path)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("JSON path %q descends into a scalar at %q", path, part)
		}
	}
	return current, nil
}

// theOutputShouldHaveLines counts non-empty lines on standard output.
func (testCtx *TestContext) theOutputShouldHaveLines(count int) error {
	lines := 0
	for _, line := range strings.Split(testCtx.LastStdout, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	if lines != count {
		return fmt.Errorf("output has %d lines, want %d\nOutput: %s", lines, count, testCtx.LastStdout)
	}
	return nil
}

// theFileShouldExist verifies a file exists.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	path := testCtx.resolvePath(filename)
	if !testutil.FileExists(path) {
		return fmt.Errorf("file %s does not exist", path)
	}
	return nil
}

// theFileShouldContain verifies a file contains the expected text.
func (testCtx *TestContext) theFileShouldContain(filename, expectedContent string) error {
	path := testCtx.resolvePath(filename)
	data, err := os.ReadFile(path) //nolint:gosec // G304: scenario controlled path
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !strings.Contains(string(data), expectedContent) {
		return fmt.Errorf("file %s does not contain %q\nContent: %s", path, expectedContent, string(data))
	}
	return nil
}

// theCommandShouldCompleteWithin verifies the last command's wall time.
func (testCtx *TestContext) theCommandShouldCompleteWithin(seconds int) error {
	if limit := time.Duration(seconds) * time.Second; testCtx.LastDuration > limit {
		return fmt.Errorf("command took %s, limit %s", testCtx.LastDuration, limit)
	}
	return nil
}

// theEnvironmentVariableIsSetTo adds an environment variable for later commands.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substituteCommandVariables(value))
	return nil
}

// aConfigFileWith writes a scenario config file from a doc string.
func (testCtx *TestContext) aConfigFileWith(name string, content *godog.DocString) error {
	path := testCtx.TempPath(name)
	if err := os.WriteFile(path, []byte(content.Content), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// RegisterCommonSteps registers command and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the output should have (\d+) lines?$`, testCtx.theOutputShouldHaveLines)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the command should complete within (\d+) seconds$`, testCtx.theCommandShouldCompleteWithin)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
	sc.Step(`^a config file "([^"]*)" with:$`, testCtx.aConfigFileWith)
}
