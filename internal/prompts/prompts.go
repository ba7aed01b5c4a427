// Package prompts holds the instruction templates sent to the text generator.
package prompts

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Set is the full prompt configuration
type Set struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Predictor  Predictor  `yaml:"predictor" json:"predictor"`
	Conclusion Conclusion `yaml:"conclusion" json:"conclusion"`
	Sampling   Sampling   `yaml:"sampling" json:"sampling"`
}

// Meta 버전 정보
type Meta struct {
	Version string `yaml:"version" json:"version"`
}

// Predictor is the per-item prediction prompt of the signal-predictor tool
type Predictor struct {
	System      string  `yaml:"system" json:"system"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// Conclusion is the fixed instruction of the daily high-tier conclusion
type Conclusion struct {
	Instruction string `yaml:"instruction" json:"instruction"`
}

// Sampling configures how sampling requests are turned into prompts
type Sampling struct {
	DefaultSystem string `yaml:"default_system" json:"default_system"`
}

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the embedded prompt set
func Default() *Set {
	set, err := decode(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts invalid: %v", err))
	}
	return set
}

// Load reads an override file. An empty path returns the embedded defaults.
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func decode(data []byte) (*Set, error) {
	var set Set
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&set); err != nil {
		return nil, err
	}

	if err := Validate(&set); err != nil {
		return nil, err
	}
	return &set, nil
}

// Validate checks all required fields
func Validate(s *Set) error {
	if strings.TrimSpace(s.Predictor.System) == "" {
		return ValidationError{"predictor.system", "required"}
	}
	if s.Predictor.Temperature < 0 || s.Predictor.Temperature > 2 {
		return ValidationError{"predictor.temperature", "must be within [0, 2]"}
	}
	if s.Predictor.MaxTokens < 0 {
		return ValidationError{"predictor.max_tokens", "must not be negative"}
	}
	if strings.TrimSpace(s.Conclusion.Instruction) == "" {
		return ValidationError{"conclusion.instruction", "required"}
	}
	return nil
}

// Hash identifies a prompt set in logs (sha256 of canonical JSON)
func Hash(s *Set) (string, error) {
	jsonBytes, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// SystemOrDefault returns system, or the configured fallback when blank
func (s *Set) SystemOrDefault(system string) string {
	if strings.TrimSpace(system) != "" {
		return system
	}
	return s.Sampling.DefaultSystem
}
