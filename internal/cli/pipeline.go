package cli

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"contentset"
)

// pipelineManifest is the declarative config the add command accepts via
// --pipeline: which paths to include or exclude, and what metadata to tag
// every ingested entry with. This lives entirely in the CLI host — the
// core library's AddDirectoryOptions takes compiled regexes and a Meta
// value directly.
type pipelineManifest struct {
	Include []string       `yaml:"include"`
	Exclude []string       `yaml:"exclude"`
	Meta    map[string]any `yaml:"meta"`
}

func loadPipeline(path string) (contentset.AddDirectoryOptions, error) {
	var opts contentset.AddDirectoryOptions
	if path == "" {
		return opts, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}

	var m pipelineManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return opts, err
	}

	for _, pattern := range m.Include {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return opts, err
		}
		opts.Include = append(opts.Include, re)
	}
	for _, pattern := range m.Exclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return opts, err
		}
		opts.Exclude = append(opts.Exclude, re)
	}
	opts.Meta = contentset.Meta(m.Meta)
	return opts, nil
}
