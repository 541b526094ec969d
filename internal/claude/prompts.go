package claude

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/ignatij/agentflow/pkg/agent"
)

// PromptLoader reads per-agent system prompts from a directory, caching
// each file after the first read.
type PromptLoader struct {
	dir      string
	registry agent.Registry

	mu    sync.Mutex
	cache map[agent.Type]string
}

func NewPromptLoader(dir string, registry agent.Registry) *PromptLoader {
	return &PromptLoader{
		dir:      dir,
		registry: registry,
		cache:    make(map[agent.Type]string),
	}
}

func (pl *PromptLoader) Load(t agent.Type) (string, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if prompt, ok := pl.cache[t]; ok {
		return prompt, nil
	}

	cfg, ok := pl.registry.Get(t)
	if !ok {
		return "", errors.Errorf("unknown agent type: %s", t)
	}
	data, err := os.ReadFile(filepath.Join(pl.dir, cfg.PromptFile))
	if err != nil {
		return "", errors.Wrapf(err, "failed to read prompt for %s", t)
	}
	pl.cache[t] = string(data)
	return string(data), nil
}
