/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads and hot-reloads the core's YAML rule/config
// file (§5): registration name, goal rules, signing key paths, NATS
// URL, Kubernetes namespace/deployment, and chat/backend endpoints.
package config

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sdmcore/engine/internal/sdmerrors"
)

// RuleConfig is one entry of the pushTest → goals rule list.
type RuleConfig struct {
	Name  string          `yaml:"name" validate:"required"`
	Test  map[string]any  `yaml:"test" validate:"required"`
	Goals []GoalTemplate  `yaml:"goals" validate:"required,min=1,dive"`
}

// GoalTemplate mirrors goal.Template's YAML-facing shape.
type GoalTemplate struct {
	UniqueName          string   `yaml:"uniqueName" validate:"required"`
	Environment         string   `yaml:"environment" validate:"required"`
	Description         string   `yaml:"description"`
	RetryFeasible       bool     `yaml:"retryFeasible"`
	ApprovalRequired    bool     `yaml:"approvalRequired"`
	PreApprovalRequired bool     `yaml:"preApprovalRequired"`
	PreConditions       []string `yaml:"preConditions"`
	Isolated            bool     `yaml:"isolated"`
	IsolationStrategy   string   `yaml:"isolationStrategy"`
}

// Config is the full YAML document this process loads at startup.
type Config struct {
	Registration string `yaml:"registration" validate:"required"`
	Version      string `yaml:"version" validate:"required"`

	NATSURL string `yaml:"natsUrl" validate:"required"`

	SigningKeyPath    string `yaml:"signingKeyPath" validate:"required"`
	VerifyingKeyPaths []string `yaml:"verifyingKeyPaths" validate:"required,min=1"`

	Kubernetes struct {
		Namespace      string `yaml:"namespace"`
		DeploymentName string `yaml:"deploymentName"`
	} `yaml:"kubernetes"`

	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	Slack struct {
		Token         string `yaml:"token"`
		AdminChannel  string `yaml:"adminChannel"`
	} `yaml:"slack"`

	SourceControlStatusURL string `yaml:"sourceControlStatusUrl"`
	RemoteLogURL           string `yaml:"remoteLogUrl"`

	// OPA names the Rego policies registered as `use` extension
	// predicates under their own Name, for rules whose pushTest
	// references a policy instead of a built-in test kind.
	OPA []OPAPolicy `yaml:"opa,omitempty"`

	Rules []RuleConfig `yaml:"rules"`
}

// OPAPolicy names one Rego module registered into the push-test
// registry under Name (conventionally "opa", or a more specific name
// when more than one policy is in play).
type OPAPolicy struct {
	Name       string `yaml:"name" validate:"required"`
	ModulePath string `yaml:"modulePath" validate:"required"`
	Query      string `yaml:"query" validate:"required"`
}

var validate = validator.New()

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sdmerrors.Wrap(sdmerrors.KindConfiguration, err, "config: reading file")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, sdmerrors.Wrap(sdmerrors.KindConfiguration, err, "config: parsing yaml")
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, sdmerrors.Wrap(sdmerrors.KindConfiguration, err, "config: validating")
	}
	return &cfg, nil
}

// Watcher hot-reloads only the Rules list from path on change, per §5:
// signing keys and transport settings require a restart. Every other
// field of a reloaded document is ignored even if changed, since
// swapping them live would invalidate in-flight signatures or
// connections.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	mu      sync.RWMutex
	rules   []RuleConfig
	onError func(error)
}

// NewWatcher starts watching path and loads its initial rule list.
func NewWatcher(path string, onError func(error)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, sdmerrors.Wrap(sdmerrors.KindConfiguration, err, "config: creating watcher")
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, sdmerrors.Wrap(sdmerrors.KindConfiguration, err, "config: watching file")
	}
	w := &Watcher{path: path, watcher: fw, rules: cfg.Rules, onError: onError}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}
			w.mu.Lock()
			w.rules = cfg.Rules
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(sdmerrors.Wrap(sdmerrors.KindTransient, err, "config: watcher error"))
			}
		}
	}
}

// Rules returns the current rule list.
func (w *Watcher) Rules() []RuleConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]RuleConfig(nil), w.rules...)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
