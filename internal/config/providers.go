package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider stage names.
const (
	ProviderWhisperServer = "whisper-server"
	ProviderWhisperDirect = "whisper-direct"
	ProviderOpenAIWhisper = "openai-whisper"
	ProviderSynthetic     = "synthetic"

	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
	ProviderExtractive = "extractive"
	ProviderKeyword    = "keyword"
)

// Providers is the ordered list of stages per chain.
type Providers struct {
	Transcription []string `yaml:"transcription" json:"transcription"`
	Summarization []string `yaml:"summarization" json:"summarization"`
	Chat          []string `yaml:"chat" json:"chat"`
}

func DefaultProviders() Providers {
	return Providers{
		Transcription: []string{ProviderWhisperServer, ProviderWhisperDirect, ProviderOpenAIWhisper, ProviderSynthetic},
		Summarization: []string{ProviderOllama, ProviderOpenAI, ProviderExtractive},
		Chat:          []string{ProviderOllama, ProviderOpenAI, ProviderKeyword},
	}
}

var knownProviders = map[string][]string{
	"transcription": {ProviderWhisperServer, ProviderWhisperDirect, ProviderOpenAIWhisper, ProviderSynthetic},
	"summarization": {ProviderOllama, ProviderOpenAI, ProviderExtractive},
	"chat":          {ProviderOllama, ProviderOpenAI, ProviderKeyword},
}

func (p Providers) Validate() error {
	check := func(chain string, names []string) error {
		seen := make(map[string]bool, len(names))
		for _, name := range names {
			if !slices.Contains(knownProviders[chain], name) {
				return fmt.Errorf("%s: unknown provider %q", chain, name)
			}
			if seen[name] {
				return fmt.Errorf("%s: provider %q listed twice", chain, name)
			}
			seen[name] = true
		}
		return nil
	}
	if err := check("transcription", p.Transcription); err != nil {
		return err
	}
	if err := check("summarization", p.Summarization); err != nil {
		return err
	}
	return check("chat", p.Chat)
}

// Normalize fills empty chains with defaults and makes sure every chain ends
// with its deterministic fallback so it always terminates with output.
func (p Providers) Normalize() Providers {
	def := DefaultProviders()
	ensure := func(names, defaults []string, terminal string) []string {
		if len(names) == 0 {
			names = defaults
		}
		ret := make([]string, 0, len(names)+1)
		for _, name := range names {
			if name != terminal {
				ret = append(ret, name)
			}
		}
		return append(ret, terminal)
	}
	return Providers{
		Transcription: ensure(p.Transcription, def.Transcription, ProviderSynthetic),
		Summarization: ensure(p.Summarization, def.Summarization, ProviderExtractive),
		Chat:          ensure(p.Chat, def.Chat, ProviderKeyword),
	}
}

// LoadProviders reads the providers file, or returns defaults when path is
// empty. A missing file is created with the defaults so it can be edited.
func LoadProviders(path string) (Providers, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultProviders(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		def := DefaultProviders()
		if err := WriteProviders(path, def); err != nil {
			return Providers{}, fmt.Errorf("seed providers file: %w", err)
		}
		return def, nil
	}
	if err != nil {
		return Providers{}, err
	}
	var p Providers
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Providers{}, fmt.Errorf("invalid providers file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Providers{}, err
	}
	return p.Normalize(), nil
}

func WriteProviders(path string, p Providers) error {
	if err := p.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
