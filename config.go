package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".sf-knowledge-uploader"

//go:embed config/settings.yaml
var defaultSettings string

// SalesforceSettings holds the org and schema names used by the client.
type SalesforceSettings struct {
	TargetOrg     string `yaml:"target_org"`
	ArticleObject string `yaml:"article_object"`
	TitleField    string `yaml:"title_field"`
	BodyField     string `yaml:"body_field"`
	URLNameField  string `yaml:"url_name_field"`
	Language      string `yaml:"language"`
	APIVersion    string `yaml:"api_version"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	ArticlesRoot         string             `yaml:"articles_root"`
	HTMLFilename         string             `yaml:"html_filename"`
	ImageExtensions      []string           `yaml:"image_extensions"`
	AttachmentExtensions []string           `yaml:"attachment_extensions"`
	Salesforce           SalesforceSettings `yaml:"salesforce"`
	PublishOnCreate      bool               `yaml:"publish_on_create"`
	SkipCategoryPages    bool               `yaml:"skip_category_pages"`
	BodyLimit            int                `yaml:"body_limit"`

	imageExtSet      map[string]bool
	attachmentExtSet map[string]bool
}

// GetConfigPath returns the full path to a config file
func GetConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// loadSettings loads settings from a YAML file, falling back to the
// embedded defaults when the file does not exist.
func loadSettings(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			data = []byte(defaultSettings)
		} else {
			return nil, fmt.Errorf("reading settings file %s: %w", settingsPath, err)
		}
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	settings.applyDefaults()

	return &settings, nil
}

func (s *Settings) applyDefaults() {
	if s.HTMLFilename == "" {
		s.HTMLFilename = "page.html"
	}
	if s.Salesforce.ArticleObject == "" {
		s.Salesforce.ArticleObject = "Knowledge__kav"
	}
	if s.Salesforce.TitleField == "" {
		s.Salesforce.TitleField = "Title"
	}
	if s.Salesforce.URLNameField == "" {
		s.Salesforce.URLNameField = "UrlName"
	}
	if s.Salesforce.Language == "" {
		s.Salesforce.Language = "en_US"
	}
	if s.Salesforce.APIVersion == "" {
		s.Salesforce.APIVersion = "60.0"
	}
	if s.BodyLimit == 0 {
		s.BodyLimit = 131072
	}
}

// ImageExtSet returns the recognized image extensions, lowercased.
func (s *Settings) ImageExtSet() map[string]bool {
	if s.imageExtSet == nil {
		s.imageExtSet = extSet(s.ImageExtensions)
	}
	return s.imageExtSet
}

// AttachmentExtSet returns the recognized attachment extensions, lowercased.
func (s *Settings) AttachmentExtSet() map[string]bool {
	if s.attachmentExtSet == nil {
		s.attachmentExtSet = extSet(s.AttachmentExtensions)
	}
	return s.attachmentExtSet
}

func extSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// ensureConfigExists creates the config directory and writes settings.yaml
// on first run so users have a file to customize.
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsFile := GetConfigPath("settings.yaml")
	if _, err := os.Stat(settingsFile); os.IsNotExist(err) {
		if err := os.WriteFile(settingsFile, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}

	return nil
}
