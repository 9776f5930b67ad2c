// ABOUTME: Interactive setup wizard for masesrv — collects backend URL and auth token, writes .env.
// ABOUTME: Follows the same subcommand pattern as "mammoth setup" in the teacher CLI.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// setupConfig holds configuration for the "masesrv setup" subcommand.
type setupConfig struct {
	skipPrompts bool
	envFile     string
}

// parseSetupArgs checks whether args starts with the "setup" subcommand and,
// if so, parses setup-specific flags. Returns the config and true if "setup"
// was detected, or a zero value and false otherwise.
func parseSetupArgs(args []string) (setupConfig, bool) {
	if len(args) == 0 || args[0] != "setup" {
		return setupConfig{}, false
	}

	var cfg setupConfig
	fs := flag.NewFlagSet("masesrv setup", flag.ContinueOnError)
	fs.BoolVar(&cfg.skipPrompts, "skip-prompts", false, "Skip interactive prompts, write only detected defaults")
	fs.StringVar(&cfg.envFile, "env-file", ".env", "Path to write .env file")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: masesrv setup [flags]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Interactive setup wizard — configure the backend URL and auth token.")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	return cfg, true
}

// printWelcome writes the setup welcome banner to w.
func printWelcome(w io.Writer) {
	fmt.Fprint(w, maseASCII)
	fmt.Fprintln(w, "Welcome to masesrv setup!")
	fmt.Fprintln(w)
}

// promptWithDefault prompts for a value, returning def if the user enters
// nothing. Returns ok=false if the reader is exhausted.
func promptWithDefault(scanner *bufio.Scanner, w io.Writer, label, def string) (string, bool) {
	if def != "" {
		fmt.Fprintf(w, "  %s [%s]: ", label, def)
	} else {
		fmt.Fprintf(w, "  %s: ", label)
	}
	if !scanner.Scan() {
		return "", false
	}
	v := strings.TrimSpace(scanner.Text())
	if v == "" {
		return def, true
	}
	return v, true
}

// collectConfig interactively prompts for the backend URL and auth token.
func collectConfig(r io.Reader, w io.Writer) map[string]string {
	scanner := bufio.NewScanner(r)
	collected := map[string]string{}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configure the engine's LLM backend and control-surface auth:")
	fmt.Fprintln(w)

	backendURL, ok := promptWithDefault(scanner, w, "Backend URL", "http://localhost:11434")
	if ok && backendURL != "" {
		collected["MASE_DEFAULT_BACKEND_URL"] = backendURL
	}

	model, ok := promptWithDefault(scanner, w, "Default model", "llama3")
	if ok && model != "" {
		collected["MASE_DEFAULT_MODEL"] = model
	}

	token, ok := promptWithDefault(scanner, w, "Auth token (blank = disabled, loopback-only)", "")
	if ok && token != "" {
		collected["MASE_AUTH_TOKEN"] = token
	}

	return collected
}

// writeEnvFile writes collected settings to a .env file. If the file already
// exists, it updates matching keys in place and appends new ones.
func writeEnvFile(path string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	var existingLines []string
	if data, err := os.ReadFile(path); err == nil {
		existingLines = strings.Split(string(data), "\n")
	}

	written := map[string]bool{}
	var outputLines []string

	for _, line := range existingLines {
		trimmed := strings.TrimSpace(line)
		updated := false
		for key, value := range values {
			lineKey := strings.TrimPrefix(trimmed, "export ")
			if k, _, ok := strings.Cut(lineKey, "="); ok && strings.TrimSpace(k) == key {
				outputLines = append(outputLines, key+"="+value)
				written[key] = true
				updated = true
				break
			}
		}
		if !updated {
			outputLines = append(outputLines, line)
		}
	}

	for key, value := range values {
		if !written[key] {
			outputLines = append(outputLines, key+"="+value)
		}
	}

	for len(outputLines) > 0 && strings.TrimSpace(outputLines[len(outputLines)-1]) == "" {
		outputLines = outputLines[:len(outputLines)-1]
	}

	content := strings.Join(outputLines, "\n") + "\n"
	return os.WriteFile(path, []byte(content), 0600)
}

// printQuickStart writes the setup summary and getting-started instructions to w.
func printQuickStart(w io.Writer, configured []string) {
	fmt.Fprintln(w)
	if len(configured) > 0 {
		fmt.Fprintf(w, "Setup complete! Wrote: %s\n", strings.Join(configured, ", "))
	} else {
		fmt.Fprintln(w, "Nothing configured; defaults will apply at runtime.")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Quick start:")
	fmt.Fprintln(w, "  masesrv -server              Start the REST control surface")
	fmt.Fprintln(w, "  masesrv run <cfg> \"...\"       Run one session from the CLI")
	fmt.Fprintln(w, "  masesrv -help                 See all options")
	fmt.Fprintln(w)
}

// runSetup executes the interactive setup wizard using stdin/stdout.
func runSetup(cfg setupConfig) int {
	return runSetupWithIO(cfg, os.Stdin, os.Stdout)
}

// runSetupWithIO executes the setup wizard with injectable I/O for testing.
func runSetupWithIO(cfg setupConfig, r io.Reader, w io.Writer) int {
	printWelcome(w)

	var collected map[string]string
	if !cfg.skipPrompts {
		collected = collectConfig(r, w)
		if err := writeEnvFile(cfg.envFile, collected); err != nil {
			fmt.Fprintf(w, "Error writing %s: %v\n", cfg.envFile, err)
			return 1
		}
	}

	var configured []string
	for key := range collected {
		configured = append(configured, key)
	}

	printQuickStart(w, configured)
	return 0
}
