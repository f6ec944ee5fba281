package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Portal holds the per-spider overrides read from the portals file. Nil
// fields were not set in the file and leave the built-in default untouched.
type Portal struct {
	Enabled     *bool
	URL         string
	InitialDate *time.Time
}

type portalsFile struct {
	Spiders map[string]portalEntry `yaml:"spiders"`
}

type portalEntry struct {
	Enabled     *bool  `yaml:"enabled"`
	URL         string `yaml:"url"`
	InitialDate string `yaml:"initial_date"`
}

// LoadPortals reads per-spider settings from a YAML file. Spider names not
// present in known are a configuration error, as is an unparsable date.
func LoadPortals(path string, known []string) (map[string]Portal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading portals file: %w", err)
	}

	var file portalsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing portals file %s: %w", path, err)
	}

	knownSet := make(map[string]bool, len(known))
	for _, name := range known {
		knownSet[name] = true
	}

	portals := make(map[string]Portal, len(file.Spiders))
	for name, entry := range file.Spiders {
		if !knownSet[name] {
			return nil, fmt.Errorf("portals file %s references unknown spider %q", path, name)
		}
		portal := Portal{Enabled: entry.Enabled, URL: entry.URL}
		if entry.InitialDate != "" {
			date, err := time.Parse("2006-01-02", entry.InitialDate)
			if err != nil {
				return nil, fmt.Errorf("spider %q: invalid initial_date %q: %w", name, entry.InitialDate, err)
			}
			portal.InitialDate = &date
		}
		portals[name] = portal
	}
	return portals, nil
}
