// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/switchyard-dev/switchyard/internal/catalog"
	"github.com/switchyard-dev/switchyard/internal/config"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepProviderID initWizardStep = iota // enter provider id
	stepCategory                         // select service category
	stepUnitCost                         // enter per-unit cost
	stepCapacity                         // enter capacity
	stepFeature                          // name the first feature (optional)
	stepDone                             // wizard complete
	stepError                            // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	ProviderID string
	Category   catalog.Category
	UnitCost   float64
	Capacity   int
	Feature    string
}

// --- bubbletea messages ---

type configWrittenMsg struct{ path string }

// --- lipgloss styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

var supportedCategories = catalog.Categories()

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	categoryIdx    int
	idInput        textinput.Model
	costInput      textinput.Model
	capacityInput  textinput.Model
	featureInput   textinput.Model
	result         initResult
	validationErr  string
	configPath     string
	errFinal       error
	forceOverwrite bool
}

func newInitModel() initModel {
	id := textinput.New()
	id.Placeholder = "e.g. anthropic-sonnet"
	id.Focus()

	cost := textinput.New()
	cost.Placeholder = "cost per request unit in USD, e.g. 0.003"

	capacity := textinput.New()
	capacity.Placeholder = "max concurrent requests, e.g. 10"

	feature := textinput.New()
	feature.Placeholder = "e.g. chat-tutor (leave empty to skip)"

	return initModel{
		step:          stepProviderID,
		idInput:       id,
		costInput:     cost,
		capacityInput: capacity,
		featureInput:  feature,
	}
}

func (m initModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepProviderID:
		return m.handleProviderIDInput(msg)
	case stepCategory:
		return m.handleCategoryKey(msg)
	case stepUnitCost:
		return m.handleUnitCostInput(msg)
	case stepCapacity:
		return m.handleCapacityInput(msg)
	case stepFeature:
		return m.handleFeatureInput(msg)
	}
	return m, nil
}

func (m initModel) handleProviderIDInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		id := strings.TrimSpace(m.idInput.Value())
		if id == "" {
			m.validationErr = "provider id must not be empty"
			return m, nil
		}
		m.result.ProviderID = id
		m.validationErr = ""
		m.step = stepCategory
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.idInput, cmd = m.idInput.Update(msg)
	return m, cmd
}

func (m initModel) handleCategoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.categoryIdx > 0 {
			m.categoryIdx--
		}
	case "down", "j":
		if m.categoryIdx < len(supportedCategories)-1 {
			m.categoryIdx++
		}
	case "enter":
		m.result.Category = supportedCategories[m.categoryIdx]
		m.validationErr = ""
		m.step = stepUnitCost
		m.costInput.SetValue("")
		m.costInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleUnitCostInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		raw := strings.TrimSpace(m.costInput.Value())
		cost, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			m.validationErr = "unit cost must be a number"
			return m, nil
		}
		if cost < 0 {
			m.validationErr = "unit cost must not be negative"
			return m, nil
		}
		m.result.UnitCost = cost
		m.validationErr = ""
		m.step = stepCapacity
		m.capacityInput.SetValue("")
		m.capacityInput.Focus()
		return m, textinput.Blink
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.costInput, cmd = m.costInput.Update(msg)
	return m, cmd
}

func (m initModel) handleCapacityInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		raw := strings.TrimSpace(m.capacityInput.Value())
		capacity, err := strconv.Atoi(raw)
		if err != nil {
			m.validationErr = "capacity must be a whole number"
			return m, nil
		}
		if capacity < 1 {
			m.validationErr = "capacity must be at least 1"
			return m, nil
		}
		m.result.Capacity = capacity
		m.validationErr = ""
		m.step = stepFeature
		m.featureInput.SetValue("")
		m.featureInput.Focus()
		return m, textinput.Blink
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.capacityInput, cmd = m.capacityInput.Update(msg)
	return m, cmd
}

func (m initModel) handleFeatureInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		// Empty feature name skips the routing table entirely; the
		// operator can add features later via the API.
		m.result.Feature = strings.TrimSpace(m.featureInput.Value())
		m.validationErr = ""
		return m, writeConfigCmd(m.result, m.forceOverwrite)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.featureInput, cmd = m.featureInput.Update(msg)
	return m, cmd
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.step {
	case stepProviderID:
		m.idInput, cmd = m.idInput.Update(msg)
	case stepUnitCost:
		m.costInput, cmd = m.costInput.Update(msg)
	case stepCapacity:
		m.capacityInput, cmd = m.capacityInput.Update(msg)
	case stepFeature:
		m.featureInput, cmd = m.featureInput.Update(msg)
	}
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Switchyard Setup Wizard  ") + "\n\n")

	switch m.step {
	case stepProviderID:
		b.WriteString(promptStyle.Render("Step 1/5: Name your first provider") + "\n\n")
		b.WriteString(m.idInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepCategory:
		b.WriteString(promptStyle.Render("Step 2/5: Service category for "+m.result.ProviderID) + "\n\n")
		for i, c := range supportedCategories {
			if i == m.categoryIdx {
				b.WriteString(selectedStyle.Render("  > "+string(c)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+string(c)) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepUnitCost:
		b.WriteString(promptStyle.Render("Step 3/5: Unit cost of "+m.result.ProviderID) + "\n\n")
		b.WriteString(m.costInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepCapacity:
		b.WriteString(promptStyle.Render("Step 4/5: Capacity of "+m.result.ProviderID) + "\n\n")
		b.WriteString(m.capacityInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepFeature:
		b.WriteString(promptStyle.Render("Step 5/5: First feature routed to "+m.result.ProviderID) + "\n\n")
		b.WriteString(m.featureInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to finish  ctrl+c to quit"))

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("switchyard start") + " to start the engine.\n")
		b.WriteString("Run " + promptStyle.Render("switchyard doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

// --- tea.Cmd factories ---

func writeConfigCmd(result initResult, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := writeInitConfig(result, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// --- Config generation (exported for tests) ---

// GenerateConfigYAML produces a minimal switchyard.yaml from the wizard
// result: one provider, the engine's emergency default pointed at it, and
// optionally a first feature routed to it.
func GenerateConfigYAML(result initResult) (string, error) {
	type providerDoc struct {
		ID       string  `yaml:"id"`
		Category string  `yaml:"category"`
		UnitCost float64 `yaml:"unit_cost"`
		Capacity int     `yaml:"capacity"`
	}
	type featureDoc struct {
		Primary string `yaml:"primary"`
	}
	var doc struct {
		Server struct {
			Listen string `yaml:"listen"`
		} `yaml:"server"`
		Storage struct {
			Backend string `yaml:"backend"`
		} `yaml:"storage"`
		Engine struct {
			EmergencyDefault string `yaml:"emergency_default"`
		} `yaml:"engine"`
		Providers []providerDoc         `yaml:"providers"`
		Features  map[string]featureDoc `yaml:"features,omitempty"`
	}

	doc.Server.Listen = defaultEngineAddr
	doc.Storage.Backend = "sqlite"
	doc.Engine.EmergencyDefault = result.ProviderID
	doc.Providers = []providerDoc{{
		ID:       result.ProviderID,
		Category: string(result.Category),
		UnitCost: result.UnitCost,
		Capacity: result.Capacity,
	}}
	if result.Feature != "" {
		doc.Features = map[string]featureDoc{
			result.Feature: {Primary: result.ProviderID},
		}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return "", syerr.Errorf(syerr.CodeCLISetupFailure, "rendering config: %w", err)
	}

	header := "# Switchyard configuration, generated by 'switchyard init'.\n" +
		"# See switchyard.yaml.default for the full set of settings.\n\n"
	return header + string(data), nil
}

// writeInitConfig renders the wizard result and writes it to the default
// config path.
//
// When forceOverwrite is false and the config file already exists, an
// error is returned asking the user to pass --force. When forceOverwrite
// is true the entire config is overwritten (full re-init).
func writeInitConfig(result initResult, forceOverwrite bool) (string, error) {
	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	// Check for existing config unless --force is set.
	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", syerr.Errorf(syerr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	content, err := GenerateConfigYAML(result)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", syerr.Errorf(syerr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		return "", syerr.Errorf(syerr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// writeDefaultConfig writes the stock commented config instead of a
// wizard-generated one. Used by --defaults for non-interactive setups.
func writeDefaultConfig(forceOverwrite bool) (string, error) {
	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", syerr.Errorf(syerr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", syerr.Errorf(syerr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(cfgPath, config.DefaultConfigYAML, 0o600); err != nil {
		return "", syerr.Errorf(syerr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// configPathForWrite returns the default config path. Exported as a
// variable so tests can override it.
var configPathForWrite = config.DefaultConfigPath

// --- Cobra command ---

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard for Switchyard",
		Long: `Run an interactive TUI wizard that walks you through:
  1. Declaring your first provider (id, category, unit cost, capacity)
  2. Routing a first feature to it

The generated config lands in ~/.config/switchyard/switchyard.yaml.

After completion, run:
  switchyard start    — start the engine
  switchyard doctor   — verify your setup`,
		RunE: runInit,
	}

	cmd.Flags().Bool("defaults", false, "Write the commented default config instead of running the wizard")
	cmd.Flags().Bool("force", false, "Overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	forceOverwrite, _ := cmd.Flags().GetBool("force")

	if useDefaults, _ := cmd.Flags().GetBool("defaults"); useDefaults {
		path, err := writeDefaultConfig(forceOverwrite)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", path)
		return nil
	}

	// Check if stdin is a terminal — if not, refuse to run interactively.
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"switchyard init requires an interactive terminal.\n"+
				"To configure Switchyard non-interactively, run 'switchyard init --defaults'\n"+
				"or edit ~/.config/switchyard/switchyard.yaml directly.")
		return syerr.New(syerr.CodeCLISetupFailure, "switchyard init: not an interactive terminal")
	}

	m := newInitModel()
	m.forceOverwrite = forceOverwrite

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return syerr.Errorf(syerr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return syerr.New(syerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}

	if fm.errFinal != nil {
		return syerr.Errorf(syerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}

	// If user quit early (not done), that's fine — just return.
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
