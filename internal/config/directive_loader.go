package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Stage names used as directive keys
const (
	DirectiveContext  = "context"
	DirectiveStrategy = "strategy"
	DirectiveContent  = "content"
	DirectiveQA       = "qa"
	DirectiveResume   = "resume"
)

type directiveSlot struct {
	stage string
	text  *string
	file  string
}

func (d *DirectiveConfig) slots() []directiveSlot {
	return []directiveSlot{
		{DirectiveContext, &d.Context, d.ContextFile},
		{DirectiveStrategy, &d.Strategy, d.StrategyFile},
		{DirectiveContent, &d.Content, d.ContentFile},
		{DirectiveQA, &d.QA, d.QAFile},
		{DirectiveResume, &d.Resume, d.ResumeFile},
	}
}

// Override returns the configured directive for stage, or "" when the
// built-in default should be used.
func (d DirectiveConfig) Override(stage string) string {
	for _, slot := range d.slots() {
		if slot.stage == stage {
			return strings.TrimSpace(*slot.text)
		}
	}
	return ""
}

// Files maps each stage that has a directive file to its absolute path
func (d DirectiveConfig) Files() map[string]string {
	files := make(map[string]string)
	for _, slot := range d.slots() {
		if slot.file == "" {
			continue
		}
		if absPath, err := filepath.Abs(slot.file); err == nil {
			files[slot.stage] = absPath
		}
	}
	return files
}

// loadDirectivesFromFiles replaces inline directive text with the content of
// the matching file, so a file always wins over config text.
func (c *Config) loadDirectivesFromFiles() error {
	log.Println("[CONFIG] Starting directive loading from files")

	loaded := 0
	for _, slot := range c.AI.Directives.slots() {
		if slot.file == "" {
			continue
		}
		content, err := ReadDirectiveFile(slot.file, slot.stage)
		if err != nil {
			return err
		}
		log.Printf("[CONFIG] Successfully loaded %s directive from file: %s (%d characters)",
			slot.stage, slot.file, len(content))
		*slot.text = content
		loaded++
	}

	c.logDirectiveSummary(loaded)
	return nil
}

// ReadDirectiveFile reads one directive file and rejects empty content
func ReadDirectiveFile(filePath, stage string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s directive file '%s': %w", stage, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s directive file not found: %s", stage, absPath)
		}
		return "", fmt.Errorf("failed to read %s directive file '%s': %w", stage, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s directive file '%s' is empty", stage, absPath)
	}

	return trimmed, nil
}

// validateDirectiveFiles checks every configured directive file exists before
// any of them is read, so all problems are reported at once.
func (c *Config) validateDirectiveFiles() error {
	var validationErrors []string

	for _, slot := range c.AI.Directives.slots() {
		if slot.file == "" {
			continue
		}
		absPath, err := filepath.Abs(slot.file)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s directive: %s", slot.stage, slot.file))
			continue
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s directive file not found: %s", slot.stage, absPath))
		}
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("directive file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}

func (c *Config) logDirectiveSummary(loadedFromFiles int) {
	log.Println("[CONFIG] === Directive Summary ===")

	overridden := 0
	for _, slot := range c.AI.Directives.slots() {
		if strings.TrimSpace(*slot.text) != "" {
			log.Printf("[CONFIG] %s directive: custom", slot.stage)
			overridden++
		}
	}

	if overridden == 0 {
		log.Println("[CONFIG] No custom directives - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Custom directives: %d (%d from files)", overridden, loadedFromFiles)
	}

	log.Println("[CONFIG] ==========================================")
}
