package config

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StageConfig is the deployment descriptor printed by `graphctl config`.
type StageConfig struct {
	Version              string                    `json:"version"`
	AppName              string                    `json:"app_name"`
	AutomaticLayer       bool                      `json:"automatic_layer,omitempty"`
	EnvironmentVariables map[string]*string        `json:"environment_variables"`
	Stages               map[string]map[string]any `json:"stages"`
}

func strp(s string) *string { return &s }

func stageConfigs() map[string]StageConfig {
	return map[string]StageConfig{
		"dev": {
			Version:        "2.0",
			AppName:        "jensen-lambda",
			AutomaticLayer: true,
			EnvironmentVariables: map[string]*string{
				"DB_BUCKET":  nil,
				"APP_TITLE":  strp("Jensen"),
				"APP_PREFIX": strp("/api"),
			},
			Stages: map[string]map[string]any{
				"dev": {
					"api_gateway_stage":        "api",
					"lambda_memory_size":       256,
					"minimum_compression_size": nil,
				},
			},
		},
		"local": {
			Version: "2.0",
			AppName: "jensen-lambda",
			EnvironmentVariables: map[string]*string{
				"DB_BUCKET": nil,
				"APP_TITLE": strp("Jensen"),
			},
			Stages: map[string]map[string]any{
				"dev": {"api_gateway_stage": "api"},
			},
		},
	}
}

// StageNames lists the known stages.
func StageNames() []string {
	names := make([]string, 0, 2)
	for name := range stageConfigs() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stage returns the stage descriptor with DB_BUCKET set to bucket. An empty
// bucket leaves it null.
func Stage(name, bucket string) (StageConfig, error) {
	cfg, ok := stageConfigs()[name]
	if !ok {
		return StageConfig{}, fmt.Errorf("config not found for stage %q", name)
	}
	if bucket != "" {
		cfg.EnvironmentVariables["DB_BUCKET"] = strp(bucket)
	}
	return cfg, nil
}

// StageJSON renders Stage as indented JSON.
func StageJSON(name, bucket string) ([]byte, error) {
	cfg, err := Stage(name, bucket)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(cfg, "", "    ")
}
