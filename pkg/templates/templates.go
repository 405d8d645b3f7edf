// Package templates renders the files an operator needs to run the bot:
// a systemd unit and a starter configuration.
package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deplostatus/pkg/fileutil"
)

// Template names
const (
	SystemdService = "systemd-service"
	Config         = "config"
)

//go:embed defaults/*.template
var defaults embed.FS

// TemplateData holds variables for template rendering.
type TemplateData map[string]string

// GetTemplatePaths returns the search paths for local overrides of a template
func GetTemplatePaths(templateName string) []string {
	filename := templateName + ".template"
	return []string{
		filepath.Join(".", "templates", filename),
		filepath.Join(fileutil.SystemConfigDir, "templates", filename),
	}
}

// GetTemplate returns the raw template content by name.
// A file in one of GetTemplatePaths wins over the built-in copy.
func GetTemplate(name string) (string, error) {
	if !ValidateTemplate(name) {
		return "", fmt.Errorf("unknown template: %s", name)
	}

	if path, err := fileutil.SearchPaths(GetTemplatePaths(name)); err == nil {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read template %s: %w", path, err)
		}
		return string(content), nil
	}

	content, err := defaults.ReadFile("defaults/" + name + ".template")
	if err != nil {
		return "", fmt.Errorf("built-in template missing: %s", name)
	}
	return string(content), nil
}

// Render renders a template with the given data.
// Uses {{PLACEHOLDER}} syntax for variable substitution; a placeholder left
// without a value is an error.
//
// Example:
//
//	rendered, err := Render(Config, TemplateData{"BOT_LOGIN": "deploy-status[bot]"})
func Render(templateName string, data TemplateData) (string, error) {
	tmplContent, err := GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	rendered := strings.NewReplacer(pairs...).Replace(tmplContent)

	if missing := placeholders(rendered); len(missing) > 0 {
		return "", fmt.Errorf("template %s: no value for %s", templateName, strings.Join(missing, ", "))
	}

	return rendered, nil
}

func placeholders(s string) []string {
	seen := make(map[string]bool)
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			break
		}
		seen[s[start+2:start+end]] = true
		s = s[start+end+2:]
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServiceParams describes the systemd unit
type ServiceParams struct {
	User       string
	Group      string
	WorkingDir string
	ConfigDir  string
	Binary     string
}

// RenderSystemdService renders the systemd service template.
func RenderSystemdService(p ServiceParams) (string, error) {
	return Render(SystemdService, TemplateData{
		"USER":        p.User,
		"GROUP":       p.Group,
		"WORKING_DIR": p.WorkingDir,
		"CONFIG_DIR":  p.ConfigDir,
		"BINARY":      p.Binary,
	})
}

// ConfigParams fills the starter configuration
type ConfigParams struct {
	WebhookSecret string
	BotLogin      string
	WorkflowFile  string
	WorkingDir    string
}

// RenderConfig renders a starter deplostatus.yaml
func RenderConfig(p ConfigParams) (string, error) {
	return Render(Config, TemplateData{
		"WEBHOOK_SECRET": p.WebhookSecret,
		"BOT_LOGIN":      p.BotLogin,
		"WORKFLOW_FILE":  p.WorkflowFile,
		"WORKING_DIR":    p.WorkingDir,
	})
}

// ListTemplates returns a list of all available template names.
func ListTemplates() []string {
	return []string{Config, SystemdService}
}

// ValidateTemplate checks if a template name is valid.
func ValidateTemplate(name string) bool {
	for _, n := range ListTemplates() {
		if n == name {
			return true
		}
	}
	return false
}
